// Package agent runs the units of work behind each workflow step.
//
// An Agent wraps an Executor with the shared lifecycle: liveness heartbeat,
// persisted AgentState, status mapping and panic recovery. Executors never
// return errors; every failure becomes a Result with Success false.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/hitl"
	"github.com/sicko7947/hrflow/llm"
	"github.com/sicko7947/hrflow/telemetry"
)

// Result is the outcome of one agent execution
type Result struct {
	Success          bool           `json:"success"`
	Data             map[string]any `json:"data,omitempty"`
	RequiresApproval bool           `json:"requires_approval"`
	GateID           hrflow.GateID  `json:"gate_id,omitempty"`
	RequestID        string         `json:"request_id,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// Failure builds a failed result
func Failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Executor is the step-specific part of an agent
type Executor interface {
	Type() string
	Execute(ctx context.Context, b *Base, input map[string]any) Result
}

// Approvals creates HITL requests. *hitl.Manager implements it.
type Approvals interface {
	CreateRequest(ctx context.Context, req hitl.NewRequest) (*hrflow.HITLRequest, error)
}

// Base carries the state and collaborators shared by every executor
type Base struct {
	state     *hrflow.AgentState
	store     hrflow.Store
	llm       llm.Client
	approvals Approvals
	logger    zerolog.Logger
	config    hrflow.Config
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// Agent is an executor bound to a lifecycle
type Agent struct {
	*Base
	exec Executor
}

// Option configures an agent
type Option func(*Base)

// WithLLM sets the language model collaborator
func WithLLM(c llm.Client) Option {
	return func(b *Base) {
		if c != nil {
			b.llm = c
		}
	}
}

// WithApprovals sets where approval requests are created
func WithApprovals(a Approvals) Option {
	return func(b *Base) {
		b.approvals = a
	}
}

// WithLogger sets the base logger
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Base) {
		b.logger = logger
	}
}

// WithHeartbeatInterval sets how often liveness is written
func WithHeartbeatInterval(d time.Duration) Option {
	return func(b *Base) {
		if d > 0 {
			b.config.HeartbeatInterval = d
		}
	}
}

// WithConfig sets token limits, retention and heartbeat tunables
func WithConfig(cfg hrflow.Config) Option {
	return func(b *Base) {
		b.config = cfg.WithDefaults()
	}
}

// WithCompany binds the run to a company
func WithCompany(companyID string) Option {
	return func(b *Base) {
		b.state.CompanyID = companyID
	}
}

// WithSession binds the run to a session
func WithSession(sessionID string) Option {
	return func(b *Base) {
		b.state.SessionID = sessionID
	}
}

// WithTask binds the run to the workflow step it executes
func WithTask(workflowID, stepID string) Option {
	return func(b *Base) {
		b.state.WorkflowID = workflowID
		b.state.StepID = stepID
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(b *Base) {
		b.now = now
	}
}

// WithMetrics sets the counters the agent records to
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Base) {
		b.metrics = m
	}
}

// New creates an idle agent with a fresh id
func New(exec Executor, store hrflow.Store, opts ...Option) *Agent {
	state := &hrflow.AgentState{
		AgentID:   uuid.New().String(),
		AgentType: exec.Type(),
		Status:    hrflow.AgentIdle,
		Context:   map[string]any{},
	}
	a := Restore(exec, state, store, opts...)
	now := a.now()
	a.state.CreatedAt = now
	a.state.UpdatedAt = now
	return a
}

// Restore rebuilds an agent around a previously persisted state
func Restore(exec Executor, state *hrflow.AgentState, store hrflow.Store, opts ...Option) *Agent {
	if state.Context == nil {
		state.Context = map[string]any{}
	}
	b := &Base{
		state:   state,
		store:   store,
		llm:     llm.Unavailable{},
		logger:  hrflow.DefaultLogger(),
		config:  hrflow.DefaultConfig,
		metrics: telemetry.DefaultMetrics(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = hrflow.AgentLogger(b.logger, state.AgentID, state.AgentType)
	return &Agent{Base: b, exec: exec}
}

// LoadState reads the persisted state of agentID
func LoadState(ctx context.Context, store hrflow.Store, agentID string) (*hrflow.AgentState, error) {
	var state hrflow.AgentState
	err := hrflow.GetJSON(ctx, store, hrflow.AgentStateKey(agentID), &state)
	if errors.Is(err, hrflow.ErrKeyNotFound) {
		return nil, hrflow.ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent %s: %w", agentID, err)
	}
	return &state, nil
}

// ID returns the agent id
func (b *Base) ID() string {
	return b.state.AgentID
}

// State returns the live agent state
func (b *Base) State() *hrflow.AgentState {
	return b.state
}

// Logger returns the agent logger
func (b *Base) Logger() zerolog.Logger {
	return b.logger
}

// Now returns the current time of the agent clock
func (b *Base) Now() time.Time {
	return b.now()
}

// SetContext stores a value in the run context
func (b *Base) SetContext(key string, value any) {
	b.state.Context[key] = value
}

// SaveState persists the agent state with the agent state TTL
func (b *Base) SaveState(ctx context.Context) error {
	b.state.UpdatedAt = b.now()
	return hrflow.SetJSON(ctx, b.store, hrflow.AgentStateKey(b.state.AgentID), b.state, b.config.AgentStateTTL)
}

// Complete sends one prompt to the language model. A non-positive maxTokens
// uses the configured limit.
func (b *Base) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	if maxTokens <= 0 {
		maxTokens = b.config.LLMMaxTokens
	}
	ctx, span := telemetry.StartSpan(ctx, "llm.complete", "agent_type", b.state.AgentType)
	text, err := b.llm.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	telemetry.EndSpan(span, err)
	return text, err
}

// RequestApproval raises a HITL gate for the current run and records the
// request id in the run context. Without an Approvals collaborator the gate
// is only logged.
func (b *Base) RequestApproval(ctx context.Context, gate hrflow.GateID, title, description string, data map[string]any) (*hrflow.HITLRequest, error) {
	if b.approvals == nil {
		b.logger.Warn().Str("gate_id", gate.String()).Msg("No approval manager configured, gate not raised")
		return nil, nil
	}

	req, err := b.approvals.CreateRequest(ctx, hitl.NewRequest{
		GateID:      gate,
		AgentID:     b.state.AgentID,
		AgentType:   b.state.AgentType,
		CompanyID:   b.state.CompanyID,
		Title:       title,
		Description: description,
		Data:        data,
		WorkflowID:  b.state.WorkflowID,
		StepID:      b.state.StepID,
		SessionID:   b.state.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request approval for %s: %w", gate, err)
	}
	b.SetContext("hitl_request_id", req.RequestID)
	return req, nil
}

// Type returns the executor type
func (a *Agent) Type() string {
	return a.exec.Type()
}

// Run executes the agent once. It never panics and never returns an error:
// failures are recorded on the state and reported in the result.
func (a *Agent) Run(ctx context.Context, input map[string]any) (result Result) {
	start := a.now()
	ctx, span := telemetry.StartSpan(ctx, "agent.run",
		"agent_id", a.state.AgentID,
		"agent_type", a.state.AgentType,
		"workflow_id", a.state.WorkflowID,
	)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.heartbeat(hbCtx)
	}()

	defer func() {
		if r := recover(); r != nil {
			result = a.finish(ctx, Failure("agent panicked: %v", r))
		}
		stopHeartbeat()
		wg.Wait()

		var runErr error
		if !result.Success {
			runErr = errors.New(result.Error)
		}
		telemetry.EndSpan(span, runErr)
		telemetry.Inc(ctx, a.metrics.AgentRuns, "agent_type", a.state.AgentType, "status", a.state.Status.String())
		hrflow.LogAgentFinished(a.logger, a.state.AgentID, a.state.Status, a.now().Sub(start))
	}()

	hrflow.LogAgentStarted(a.logger, a.state.AgentID, a.state.AgentType)

	a.state.Status = hrflow.AgentRunning
	a.state.CurrentStep = a.state.StepID
	a.state.Error = ""
	a.SetContext("input", input)
	if err := a.SaveState(ctx); err != nil {
		hrflow.LogPersistenceError(a.logger, hrflow.AgentStateKey(a.state.AgentID), "set", err)
		a.state.Status = hrflow.AgentFailed
		a.state.Error = err.Error()
		return Failure("failed to persist agent state: %v", err)
	}

	return a.finish(ctx, a.exec.Execute(ctx, a.Base, input))
}

// finish maps the result onto the agent status and persists it
func (a *Agent) finish(ctx context.Context, result Result) Result {
	switch {
	case result.Success && result.RequiresApproval:
		a.state.Status = hrflow.AgentWaitingApproval
	case result.Success:
		a.state.Status = hrflow.AgentCompleted
	default:
		a.state.Status = hrflow.AgentFailed
		a.state.Error = result.Error
	}
	if result.Success {
		a.SetContext("output", result.Data)
	}

	if err := a.SaveState(ctx); err != nil {
		hrflow.LogPersistenceError(a.logger, hrflow.AgentStateKey(a.state.AgentID), "set", err)
		a.state.Status = hrflow.AgentFailed
		a.state.Error = err.Error()
		return Failure("failed to persist agent state: %v", err)
	}
	return result
}

// ResumeAfterApproval applies the human decision to a waiting agent. An
// approval returns the output stored by the run that raised the gate.
func (a *Agent) ResumeAfterApproval(ctx context.Context, approved bool, feedback string) Result {
	if !approved {
		a.state.Status = hrflow.AgentFailed
		a.state.Error = "Rejected by HITL: " + feedback
		if err := a.SaveState(ctx); err != nil {
			hrflow.LogPersistenceError(a.logger, hrflow.AgentStateKey(a.state.AgentID), "set", err)
		}
		return Result{Success: false, Error: a.state.Error}
	}

	a.state.Status = hrflow.AgentRunning
	if feedback != "" {
		a.SetContext("hitl_feedback", feedback)
	}
	if err := a.SaveState(ctx); err != nil {
		hrflow.LogPersistenceError(a.logger, hrflow.AgentStateKey(a.state.AgentID), "set", err)
		return Failure("failed to persist agent state: %v", err)
	}

	output, _ := a.state.Context["output"].(map[string]any)
	return Result{Success: true, Data: output}
}

// heartbeat refreshes the liveness key until ctx is cancelled
func (b *Base) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(b.config.HeartbeatInterval)
	defer ticker.Stop()

	b.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.beat(ctx)
		}
	}
}

func (b *Base) beat(ctx context.Context) {
	key := hrflow.AgentHeartbeatKey(b.state.AgentID)
	value := []byte(b.now().Format(time.RFC3339Nano))
	if err := b.store.Set(ctx, key, value, b.config.HeartbeatTTL()); err != nil && ctx.Err() == nil {
		b.logger.Warn().Err(err).Msg("Failed to write heartbeat")
	}
}
