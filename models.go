package hrflow

import (
	"time"
)

// StepStatus represents the current state of a workflow or one of its steps
type StepStatus string

const (
	StatusPending         StepStatus = "pending"
	StatusRunning         StepStatus = "running"
	StatusWaitingApproval StepStatus = "waiting_hitl"
	StatusCompleted       StepStatus = "completed"
	StatusFailed          StepStatus = "failed"
	StatusCancelled       StepStatus = "cancelled"
)

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// String returns the string representation
func (s StepStatus) String() string {
	return string(s)
}

// AgentStatus represents the state of a single agent run
type AgentStatus string

const (
	AgentIdle            AgentStatus = "idle"
	AgentRunning         AgentStatus = "running"
	AgentWaitingApproval AgentStatus = "waiting_hitl"
	AgentCompleted       AgentStatus = "completed"
	AgentFailed          AgentStatus = "failed"
)

// String returns the string representation
func (s AgentStatus) String() string {
	return string(s)
}

// RequestStatus represents the state of a HITL approval request
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestExpired   RequestStatus = "expired"
	RequestCancelled RequestStatus = "cancelled"
)

// IsTerminal returns true once the request has left the pending state
func (s RequestStatus) IsTerminal() bool {
	return s != RequestPending
}

// String returns the string representation
func (s RequestStatus) String() string {
	return string(s)
}

// GateID names one of the predefined human approval checkpoints
type GateID string

const (
	GateContextReview      GateID = "HITL-001"
	GateTalentProfile      GateID = "HITL-002"
	GateGradingSystem      GateID = "HITL-003"
	GateEvaluationSystem   GateID = "HITL-004"
	GateCompensation       GateID = "HITL-005"
	GateFinalPolicy        GateID = "HITL-006"
	GateDocumentGeneration GateID = "HITL-007"
)

// String returns the string representation
func (g GateID) String() string {
	return string(g)
}

// WorkflowStep is one stage of the design pipeline
type WorkflowStep struct {
	StepID      string         `json:"step_id" dynamodbav:"step_id"`
	AgentType   string         `json:"agent_type" dynamodbav:"agent_type"`
	Status      StepStatus     `json:"status" dynamodbav:"status"`
	DependsOn   []string       `json:"depends_on" dynamodbav:"depends_on"`
	InputData   map[string]any `json:"input_data" dynamodbav:"input_data"`
	OutputData  map[string]any `json:"output_data" dynamodbav:"output_data"`
	StartedAt   *time.Time     `json:"started_at,omitempty" dynamodbav:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// WorkflowState is the persisted aggregate owned by one orchestrator
type WorkflowState struct {
	WorkflowID  string          `json:"workflow_id" dynamodbav:"workflow_id"`
	CompanyID   string          `json:"company_id" dynamodbav:"company_id"`
	SessionID   string          `json:"session_id" dynamodbav:"session_id"`
	Status      StepStatus      `json:"status" dynamodbav:"status"`
	Steps       []*WorkflowStep `json:"steps" dynamodbav:"steps"`
	Context     map[string]any  `json:"context" dynamodbav:"context"`
	CurrentStep string          `json:"current_step,omitempty" dynamodbav:"current_step,omitempty"`
	Version     int64           `json:"version" dynamodbav:"version"`
	CreatedAt   time.Time       `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" dynamodbav:"updated_at"`
}

// Step returns the step with the given identifier, or nil
func (w *WorkflowState) Step(stepID string) *WorkflowStep {
	for _, s := range w.Steps {
		if s.StepID == stepID {
			return s
		}
	}
	return nil
}

// CountByStatus returns the number of steps currently in the given status
func (w *WorkflowState) CountByStatus(status StepStatus) int {
	n := 0
	for _, s := range w.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}

// HITLRequest is a single approval gate raised by an agent
type HITLRequest struct {
	RequestID    string         `json:"request_id" dynamodbav:"request_id"`
	GateID       GateID         `json:"gate_id" dynamodbav:"gate_id"`
	AgentID      string         `json:"agent_id" dynamodbav:"agent_id"`
	AgentType    string         `json:"agent_type" dynamodbav:"agent_type"`
	WorkflowID   string         `json:"workflow_id,omitempty" dynamodbav:"workflow_id,omitempty"`
	StepID       string         `json:"step_id,omitempty" dynamodbav:"step_id,omitempty"`
	CompanyID    string         `json:"company_id" dynamodbav:"company_id"`
	SessionID    string         `json:"session_id,omitempty" dynamodbav:"session_id,omitempty"`
	Title        string         `json:"title" dynamodbav:"title"`
	Description  string         `json:"description" dynamodbav:"description"`
	Data         map[string]any `json:"data" dynamodbav:"data"`
	Status       RequestStatus  `json:"status" dynamodbav:"status"`
	TimeoutHours int            `json:"timeout_hours" dynamodbav:"timeout_hours"`
	RequestedAt  time.Time      `json:"requested_at" dynamodbav:"requested_at"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty" dynamodbav:"expires_at,omitempty"`
	DecidedAt    *time.Time     `json:"decided_at,omitempty" dynamodbav:"decided_at,omitempty"`
	DecidedBy    string         `json:"decided_by,omitempty" dynamodbav:"decided_by,omitempty"`
	Feedback     string         `json:"feedback,omitempty" dynamodbav:"feedback,omitempty"`
}

// IsExpired reports whether a still-pending request has passed its expiry time
func (r *HITLRequest) IsExpired(now time.Time) bool {
	return r.Status == RequestPending && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// HITLDecision is the record of a human decision on a request
type HITLDecision struct {
	RequestID  string    `json:"request_id" dynamodbav:"request_id"`
	GateID     GateID    `json:"gate_id" dynamodbav:"gate_id"`
	WorkflowID string    `json:"workflow_id,omitempty" dynamodbav:"workflow_id,omitempty"`
	StepID     string    `json:"step_id,omitempty" dynamodbav:"step_id,omitempty"`
	AgentID    string    `json:"agent_id,omitempty" dynamodbav:"agent_id,omitempty"`
	CompanyID  string    `json:"company_id" dynamodbav:"company_id"`
	Approved   bool      `json:"approved" dynamodbav:"approved"`
	Feedback   string    `json:"feedback,omitempty" dynamodbav:"feedback,omitempty"`
	DecidedBy  string    `json:"decided_by" dynamodbav:"decided_by"`
	DecidedAt  time.Time `json:"decided_at" dynamodbav:"decided_at"`
}

// AgentState is the per-run record of an agent
type AgentState struct {
	AgentID     string         `json:"agent_id" dynamodbav:"agent_id"`
	AgentType   string         `json:"agent_type" dynamodbav:"agent_type"`
	Status      AgentStatus    `json:"status" dynamodbav:"status"`
	CompanyID   string         `json:"company_id,omitempty" dynamodbav:"company_id,omitempty"`
	SessionID   string         `json:"session_id,omitempty" dynamodbav:"session_id,omitempty"`
	WorkflowID  string         `json:"workflow_id,omitempty" dynamodbav:"workflow_id,omitempty"`
	StepID      string         `json:"step_id,omitempty" dynamodbav:"step_id,omitempty"`
	CurrentStep string         `json:"current_step,omitempty" dynamodbav:"current_step,omitempty"`
	Context     map[string]any `json:"context" dynamodbav:"context"`
	CreatedAt   time.Time      `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" dynamodbav:"updated_at"`
	Error       string         `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// TaskMessage is published to an agent task destination when a step is dispatched
type TaskMessage struct {
	WorkflowID string         `json:"workflow_id"`
	StepID     string         `json:"step_id"`
	AgentType  string         `json:"agent_type"`
	CompanyID  string         `json:"company_id"`
	SessionID  string         `json:"session_id"`
	InputData  map[string]any `json:"input_data"`
}

// LifecycleEvent is published to the orchestrator events destination
type LifecycleEvent struct {
	Event      string     `json:"event"`
	WorkflowID string     `json:"workflow_id"`
	CompanyID  string     `json:"company_id"`
	StepID     string     `json:"step_id,omitempty"`
	Status     StepStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
