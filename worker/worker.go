// Package worker hosts agents behind the message channel. It consumes step
// tasks and HITL decisions and reports outcomes back to the orchestrator.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/agent"
	"github.com/sicko7947/hrflow/llm"
	"github.com/sicko7947/hrflow/orchestrator"
	"github.com/sicko7947/hrflow/telemetry"
)

// Worker runs agents for the task destinations of its registry
type Worker struct {
	store     hrflow.Store
	bus       hrflow.Bus
	registry  *agent.Registry
	llm       llm.Client
	approvals agent.Approvals
	logger    zerolog.Logger
	config    hrflow.Config
	metrics   *telemetry.Metrics
	now       func() time.Time

	orchestratorOpts []orchestrator.Option
}

// Option configures a Worker
type Option func(*Worker)

// WithLLM sets the model used by every agent
func WithLLM(c llm.Client) Option {
	return func(w *Worker) {
		w.llm = c
	}
}

// WithApprovals sets where agents raise their gates
func WithApprovals(a agent.Approvals) Option {
	return func(w *Worker) {
		w.approvals = a
	}
}

// WithLogger sets the base logger
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithConfig sets the tunables passed to agents and orchestrators
func WithConfig(cfg hrflow.Config) Option {
	return func(w *Worker) {
		w.config = cfg.WithDefaults()
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// WithMetrics sets the counters
func WithMetrics(m *telemetry.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithOrchestratorOptions adds options used whenever a workflow is loaded
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(w *Worker) {
		w.orchestratorOpts = append(w.orchestratorOpts, opts...)
	}
}

// New creates a worker for the executors in registry
func New(store hrflow.Store, bus hrflow.Bus, registry *agent.Registry, opts ...Option) *Worker {
	w := &Worker{
		store:    store,
		bus:      bus,
		registry: registry,
		llm:      llm.Unavailable{},
		logger:   hrflow.DefaultLogger(),
		config:   hrflow.DefaultConfig,
		metrics:  telemetry.DefaultMetrics(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With().Str("component", "worker").Logger()
	return w
}

// Start subscribes to the task destination of every registered agent type
// and to HITL decisions
func (w *Worker) Start(ctx context.Context) error {
	for _, agentType := range w.registry.Types() {
		dest := hrflow.AgentTaskDestination(agentType)
		if err := w.bus.Subscribe(ctx, dest, w.traced(dest, w.HandleTask)); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", dest, err)
		}
	}
	if err := w.bus.Subscribe(ctx, hrflow.DestinationHITLResponses, w.traced(hrflow.DestinationHITLResponses, w.HandleDecision)); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", hrflow.DestinationHITLResponses, err)
	}

	w.logger.Info().Strs("agent_types", w.registry.Types()).Msg("Worker started")
	return nil
}

func (w *Worker) traced(dest string, h hrflow.MessageHandler) hrflow.MessageHandler {
	return func(ctx context.Context, body []byte) (err error) {
		ctx, span := telemetry.StartConsumerSpan(ctx, dest)
		defer func() { telemetry.EndSpan(span, err) }()
		return h(ctx, body)
	}
}

func (w *Worker) agentOptions(companyID, sessionID, workflowID, stepID string) []agent.Option {
	return []agent.Option{
		agent.WithLLM(w.llm),
		agent.WithApprovals(w.approvals),
		agent.WithLogger(w.logger),
		agent.WithConfig(w.config),
		agent.WithClock(w.now),
		agent.WithMetrics(w.metrics),
		agent.WithCompany(companyID),
		agent.WithSession(sessionID),
		agent.WithTask(workflowID, stepID),
	}
}

func (w *Worker) load(ctx context.Context, workflowID string) (*orchestrator.Orchestrator, error) {
	opts := append([]orchestrator.Option{
		orchestrator.WithLogger(w.logger),
		orchestrator.WithConfig(w.config),
		orchestrator.WithClock(w.now),
		orchestrator.WithMetrics(w.metrics),
	}, w.orchestratorOpts...)
	return orchestrator.Load(ctx, w.store, w.bus, workflowID, opts...)
}

// HandleTask runs the agent for one dispatched step and reports the result
func (w *Worker) HandleTask(ctx context.Context, body []byte) error {
	var task hrflow.TaskMessage
	if err := json.Unmarshal(body, &task); err != nil {
		return fmt.Errorf("invalid task message: %w", err)
	}
	logger := hrflow.WorkflowLogger(w.logger, task.WorkflowID, task.CompanyID)

	exec, err := w.registry.Get(task.AgentType)
	if err != nil {
		logger.Error().Err(err).Str("step_id", task.StepID).Msg("Cannot run task")
		return w.report(ctx, task, agent.Failure("%v", err))
	}

	a := agent.New(exec, w.store, w.agentOptions(task.CompanyID, task.SessionID, task.WorkflowID, task.StepID)...)
	result := a.Run(ctx, task.InputData)
	return w.report(ctx, task, result)
}

func (w *Worker) report(ctx context.Context, task hrflow.TaskMessage, result agent.Result) error {
	o, err := w.load(ctx, task.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to report step %s: %w", task.StepID, err)
	}
	if result.Success {
		return o.OnStepCompleted(ctx, task.StepID, result.Data, result.RequiresApproval)
	}
	return o.OnStepFailed(ctx, task.StepID, result.Error)
}

// HandleDecision resumes the agent that raised the gate and hands the
// decision to its workflow. Decisions without a workflow are ignored.
func (w *Worker) HandleDecision(ctx context.Context, body []byte) error {
	var decision hrflow.HITLDecision
	if err := json.Unmarshal(body, &decision); err != nil {
		return fmt.Errorf("invalid decision message: %w", err)
	}
	logger := w.logger.With().
		Str("request_id", decision.RequestID).
		Str("workflow_id", decision.WorkflowID).
		Str("step_id", decision.StepID).
		Logger()

	if decision.AgentID != "" {
		w.resume(ctx, logger, decision)
	}

	if decision.WorkflowID == "" || decision.StepID == "" {
		logger.Debug().Msg("Decision has no workflow, nothing to advance")
		return nil
	}

	o, err := w.load(ctx, decision.WorkflowID)
	if errors.Is(err, hrflow.ErrWorkflowNotFound) {
		logger.Warn().Msg("Workflow for decision no longer exists")
		return nil
	}
	if err != nil {
		return err
	}
	return o.OnHITLDecision(ctx, decision.StepID, decision.Approved, decision.Feedback)
}

// resume updates the agent record. Agent state is short-lived, so a missing
// record is logged and skipped.
func (w *Worker) resume(ctx context.Context, logger zerolog.Logger, decision hrflow.HITLDecision) {
	state, err := agent.LoadState(ctx, w.store, decision.AgentID)
	if err != nil {
		logger.Warn().Err(err).Str("agent_id", decision.AgentID).Msg("Cannot resume agent")
		return
	}
	exec, err := w.registry.Get(state.AgentType)
	if err != nil {
		logger.Warn().Err(err).Str("agent_id", decision.AgentID).Msg("Cannot resume agent")
		return
	}

	a := agent.Restore(exec, state, w.store, w.agentOptions(state.CompanyID, state.SessionID, state.WorkflowID, state.StepID)...)
	a.ResumeAfterApproval(ctx, decision.Approved, decision.Feedback)
}
