package hrflow

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log event names
const (
	// Workflow-level events
	EventWorkflowStarted   = "workflow_started"
	EventWorkflowProgress  = "workflow_progress"
	EventWorkflowCompleted = "workflow_completed"
	EventWorkflowFailed    = "workflow_failed"

	// Step-level events
	EventStepDispatched      = "step_dispatched"
	EventStepWaitingApproval = "step_waiting_approval"
	EventStepCompleted       = "step_completed"
	EventStepFailed          = "step_failed"
	EventStepRetried         = "step_retried"
	EventStepIgnored         = "step_transition_ignored"

	// HITL events
	EventHITLRequested = "hitl_requested"
	EventHITLDecided   = "hitl_decided"
	EventHITLExpired   = "hitl_expired"
	EventHITLCancelled = "hitl_cancelled"

	// Agent events
	EventAgentStarted  = "agent_started"
	EventAgentFinished = "agent_finished"
	EventAgentFallback = "agent_fallback"

	// Company events
	EventCompanyCreated = "company_created"
	EventCompanyDeleted = "company_deleted"

	// Persistence events
	EventPersistenceError = "persistence_error"

	EventHTTPRequest = "http_request"
)

// DefaultLogger returns a console logger at Info level
func DefaultLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)
}

// LogWorkflowStarted logs when a workflow starts execution
func LogWorkflowStarted(logger zerolog.Logger, workflowID, companyID string) {
	logger.Info().
		Str("event", EventWorkflowStarted).
		Str("workflow_id", workflowID).
		Str("company_id", companyID).
		Msg("Workflow started")
}

// LogWorkflowProgress logs workflow execution progress
func LogWorkflowProgress(logger zerolog.Logger, workflowID string, completed, total int) {
	logger.Debug().
		Str("event", EventWorkflowProgress).
		Str("workflow_id", workflowID).
		Int("completed", completed).
		Int("total", total).
		Msg("Workflow progress updated")
}

// LogWorkflowCompleted logs successful workflow completion
func LogWorkflowCompleted(logger zerolog.Logger, workflowID string, duration time.Duration) {
	logger.Info().
		Str("event", EventWorkflowCompleted).
		Str("workflow_id", workflowID).
		Dur("duration", duration).
		Msg("Workflow completed")
}

// LogWorkflowFailed logs workflow failure
func LogWorkflowFailed(logger zerolog.Logger, workflowID, stepID, reason string) {
	logger.Error().
		Str("event", EventWorkflowFailed).
		Str("workflow_id", workflowID).
		Str("step_id", stepID).
		Str("reason", reason).
		Msg("Workflow failed")
}

// LogStepDispatched logs a step handed to its agent
func LogStepDispatched(logger zerolog.Logger, workflowID, stepID, agentType string) {
	logger.Info().
		Str("event", EventStepDispatched).
		Str("workflow_id", workflowID).
		Str("step_id", stepID).
		Str("agent_type", agentType).
		Msg("Step dispatched")
}

// LogStepWaitingApproval logs a step parked behind a HITL gate
func LogStepWaitingApproval(logger zerolog.Logger, workflowID, stepID string) {
	logger.Info().
		Str("event", EventStepWaitingApproval).
		Str("workflow_id", workflowID).
		Str("step_id", stepID).
		Msg("Step waiting for approval")
}

// LogStepCompleted logs successful step completion
func LogStepCompleted(logger zerolog.Logger, workflowID, stepID string) {
	logger.Info().
		Str("event", EventStepCompleted).
		Str("workflow_id", workflowID).
		Str("step_id", stepID).
		Msg("Step completed")
}

// LogStepFailed logs step failure
func LogStepFailed(logger zerolog.Logger, workflowID, stepID, errMsg string) {
	logger.Error().
		Str("event", EventStepFailed).
		Str("workflow_id", workflowID).
		Str("step_id", stepID).
		Str("error", errMsg).
		Msg("Step failed")
}

// LogStepRetried logs a failed step being re-dispatched
func LogStepRetried(logger zerolog.Logger, workflowID, stepID string) {
	logger.Info().
		Str("event", EventStepRetried).
		Str("workflow_id", workflowID).
		Str("step_id", stepID).
		Msg("Step retried")
}

// LogCompanyCreated logs a stored company profile
func LogCompanyCreated(logger zerolog.Logger, companyID, name string) {
	logger.Info().
		Str("event", EventCompanyCreated).
		Str("company_id", companyID).
		Str("name", name).
		Msg("Company created")
}

// LogCompanyDeleted logs a removed company profile
func LogCompanyDeleted(logger zerolog.Logger, companyID string) {
	logger.Info().
		Str("event", EventCompanyDeleted).
		Str("company_id", companyID).
		Msg("Company deleted")
}

// LogStepIgnored logs a transition requested on a step that cannot take it
func LogStepIgnored(logger zerolog.Logger, workflowID, stepID string, status StepStatus, operation string) {
	logger.Warn().
		Str("event", EventStepIgnored).
		Str("workflow_id", workflowID).
		Str("step_id", stepID).
		Str("status", status.String()).
		Str("operation", operation).
		Msg("Step transition ignored")
}

// LogHITLRequested logs a newly created approval request
func LogHITLRequested(logger zerolog.Logger, requestID string, gateID GateID, companyID string) {
	logger.Info().
		Str("event", EventHITLRequested).
		Str("request_id", requestID).
		Str("gate_id", gateID.String()).
		Str("company_id", companyID).
		Msg("HITL request created")
}

// LogHITLDecided logs a recorded decision
func LogHITLDecided(logger zerolog.Logger, requestID string, approved bool, decidedBy string) {
	logger.Info().
		Str("event", EventHITLDecided).
		Str("request_id", requestID).
		Bool("approved", approved).
		Str("decided_by", decidedBy).
		Msg("HITL decision recorded")
}

// LogHITLExpired logs a request reclassified as expired
func LogHITLExpired(logger zerolog.Logger, requestID, companyID string) {
	logger.Warn().
		Str("event", EventHITLExpired).
		Str("request_id", requestID).
		Str("company_id", companyID).
		Msg("HITL request expired")
}

// LogHITLCancelled logs a request withdrawn before a decision
func LogHITLCancelled(logger zerolog.Logger, requestID, companyID string) {
	logger.Info().
		Str("event", EventHITLCancelled).
		Str("request_id", requestID).
		Str("company_id", companyID).
		Msg("HITL request cancelled")
}

// LogAgentStarted logs the start of an agent run
func LogAgentStarted(logger zerolog.Logger, agentID, agentType string) {
	logger.Info().
		Str("event", EventAgentStarted).
		Str("agent_id", agentID).
		Str("agent_type", agentType).
		Msg("Agent started")
}

// LogAgentFinished logs the end of an agent run
func LogAgentFinished(logger zerolog.Logger, agentID string, status AgentStatus, duration time.Duration) {
	logger.Info().
		Str("event", EventAgentFinished).
		Str("agent_id", agentID).
		Str("status", status.String()).
		Dur("duration", duration).
		Msg("Agent finished")
}

// LogAgentFallback logs an agent substituting its default artifact
func LogAgentFallback(logger zerolog.Logger, agentType string, err error) {
	logger.Warn().
		Str("event", EventAgentFallback).
		Str("agent_type", agentType).
		Err(err).
		Msg("Using default artifact")
}

// LogPersistenceError logs errors during persistence operations
func LogPersistenceError(logger zerolog.Logger, key, operation string, err error) {
	logger.Error().
		Str("event", EventPersistenceError).
		Str("key", key).
		Str("operation", operation).
		Err(err).
		Msg("Persistence error")
}

// WorkflowLogger creates a logger enriched with workflow context
func WorkflowLogger(baseLogger zerolog.Logger, workflowID, companyID string) zerolog.Logger {
	return baseLogger.With().
		Str("workflow_id", workflowID).
		Str("company_id", companyID).
		Logger()
}

// AgentLogger creates a logger enriched with agent run context
func AgentLogger(baseLogger zerolog.Logger, agentID, agentType string) zerolog.Logger {
	return baseLogger.With().
		Str("agent_id", agentID).
		Str("agent_type", agentType).
		Logger()
}

// RequestLogger creates a logger enriched with HITL request context
func RequestLogger(baseLogger zerolog.Logger, requestID string, gateID GateID) zerolog.Logger {
	return baseLogger.With().
		Str("request_id", requestID).
		Str("gate_id", gateID.String()).
		Logger()
}
