// Package orchestrator drives one HR policy workflow through its steps.
//
// An Orchestrator owns a single WorkflowState in memory. Every mutation is
// written back to the store as a whole object and then announced on the
// channel; agents report back through OnStepCompleted, OnStepFailed and
// OnHITLDecision, usually on a freshly loaded Orchestrator.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/builder"
	"github.com/sicko7947/hrflow/telemetry"
)

// Orchestrator coordinates the steps of one workflow
type Orchestrator struct {
	store    hrflow.Store
	pub      hrflow.Publisher
	template *hrflow.Template
	state    *hrflow.WorkflowState
	logger   zerolog.Logger
	config   hrflow.Config
	metrics  *telemetry.Metrics
	now      func() time.Time

	sessionID string
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithSessionID sets the session of a new workflow
func WithSessionID(sessionID string) Option {
	return func(o *Orchestrator) {
		o.sessionID = sessionID
	}
}

// WithLogger sets the base logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTemplate replaces the HR policy template
func WithTemplate(t *hrflow.Template) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.template = t
		}
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithConfig sets retention and other tunables
func WithConfig(cfg hrflow.Config) Option {
	return func(o *Orchestrator) {
		o.config = cfg.WithDefaults()
	}
}

// WithMetrics sets the counters the orchestrator records to
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func newOrchestrator(store hrflow.Store, pub hrflow.Publisher, opts []Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		pub:      pub,
		template: builder.HRPolicyTemplate(),
		logger:   hrflow.DefaultLogger(),
		config:   hrflow.DefaultConfig,
		metrics:  telemetry.DefaultMetrics(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New builds a pending workflow for companyID from the template. Nothing is
// persisted until Start.
func New(store hrflow.Store, pub hrflow.Publisher, companyID string, opts ...Option) *Orchestrator {
	o := newOrchestrator(store, pub, opts)

	sessionID := o.sessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	now := o.now()
	o.state = &hrflow.WorkflowState{
		WorkflowID: uuid.New().String(),
		CompanyID:  companyID,
		SessionID:  sessionID,
		Status:     hrflow.StatusPending,
		Steps:      o.template.NewSteps(),
		Context:    map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	o.logger = hrflow.WorkflowLogger(o.logger, o.state.WorkflowID, companyID)
	return o
}

// Load rebuilds an Orchestrator from the persisted state of workflowID.
// It returns hrflow.ErrWorkflowNotFound when no state is stored. A workflow
// built with WithTemplate must be loaded with the same template.
func Load(ctx context.Context, store hrflow.Store, pub hrflow.Publisher, workflowID string, opts ...Option) (*Orchestrator, error) {
	var state hrflow.WorkflowState
	err := hrflow.GetJSON(ctx, store, hrflow.WorkflowKey(workflowID), &state)
	if errors.Is(err, hrflow.ErrKeyNotFound) {
		return nil, hrflow.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	if state.Context == nil {
		state.Context = map[string]any{}
	}
	for _, s := range state.Steps {
		if s.InputData == nil {
			s.InputData = map[string]any{}
		}
		if s.OutputData == nil {
			s.OutputData = map[string]any{}
		}
	}

	o := newOrchestrator(store, pub, opts)
	o.state = &state
	o.logger = hrflow.WorkflowLogger(o.logger, state.WorkflowID, state.CompanyID)
	return o, nil
}

// WorkflowID returns the workflow identifier
func (o *Orchestrator) WorkflowID() string {
	return o.state.WorkflowID
}

// State returns the in-memory workflow state
func (o *Orchestrator) State() *hrflow.WorkflowState {
	return o.state
}

// Start marks the workflow running, hands initialData to the first step and
// persists the state
func (o *Orchestrator) Start(ctx context.Context, initialData map[string]any) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.Start",
		"workflow_id", o.state.WorkflowID,
		"company_id", o.state.CompanyID,
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if initialData == nil {
		initialData = map[string]any{}
	}

	o.state.Status = hrflow.StatusRunning
	o.state.Context["initial_data"] = initialData
	if len(o.state.Steps) > 0 {
		o.state.Steps[0].InputData = hrflow.ClonePayload(initialData)
	}

	if err := o.save(ctx); err != nil {
		return err
	}

	telemetry.Inc(ctx, o.metrics.WorkflowsStarted)
	hrflow.LogWorkflowStarted(o.logger, o.state.WorkflowID, o.state.CompanyID)
	o.emit(ctx, hrflow.EventWorkflowStarted, "", "")
	return nil
}

// ExecuteStep dispatches stepID to its agent. The step must be pending with
// every dependency completed. The call returns once the task is published;
// the outcome arrives later through OnStepCompleted or OnStepFailed.
func (o *Orchestrator) ExecuteStep(ctx context.Context, stepID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.ExecuteStep",
		"workflow_id", o.state.WorkflowID,
		"step_id", stepID,
	)
	defer func() { telemetry.EndSpan(span, err) }()

	step := o.state.Step(stepID)
	if step == nil {
		o.logger.Error().Str("step_id", stepID).Msg("Step not found")
		return hrflow.ErrStepNotFound
	}
	if !o.ready(step) {
		hrflow.LogStepIgnored(o.logger, o.state.WorkflowID, stepID, step.Status, "execute")
		return hrflow.ErrStepNotReady
	}

	o.state.CurrentStep = stepID
	return o.dispatch(ctx, step)
}

// dispatch marks steps running and persists the state once, before any
// task is published
func (o *Orchestrator) dispatch(ctx context.Context, steps ...*hrflow.WorkflowStep) error {
	now := o.now()
	for _, step := range steps {
		input, err := o.collectInput(step)
		if err != nil {
			return err
		}
		step.Status = hrflow.StatusRunning
		step.StartedAt = &now
		step.CompletedAt = nil
		step.Error = ""
		step.InputData = input
	}

	if err := o.save(ctx); err != nil {
		return err
	}

	for _, step := range steps {
		task := hrflow.TaskMessage{
			WorkflowID: o.state.WorkflowID,
			StepID:     step.StepID,
			AgentType:  step.AgentType,
			CompanyID:  o.state.CompanyID,
			SessionID:  o.state.SessionID,
			InputData:  step.InputData,
		}
		dest := hrflow.AgentTaskDestination(step.AgentType)
		if err := hrflow.PublishJSON(ctx, o.pub, dest, task, hrflow.PriorityNormal); err != nil {
			return fmt.Errorf("failed to dispatch step %s: %w", step.StepID, err)
		}

		telemetry.Inc(ctx, o.metrics.StepsDispatched, "agent_type", step.AgentType)
		hrflow.LogStepDispatched(o.logger, o.state.WorkflowID, step.StepID, step.AgentType)
		o.emit(ctx, hrflow.EventStepDispatched, step.StepID, "")
	}
	return nil
}

// collectInput merges the outputs of every upstream step, keyed by step id,
// over the step's existing input. Ancestors are visited in topological order
// so a later-declared dependency wins on collision.
func (o *Orchestrator) collectInput(step *hrflow.WorkflowStep) (map[string]any, error) {
	input := hrflow.ClonePayload(step.InputData)
	if input == nil {
		input = map[string]any{}
	}

	ancestors, err := o.template.Graph().Ancestors(step.StepID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dependencies of %s: %w", step.StepID, err)
	}
	for _, id := range ancestors {
		dep := o.state.Step(id)
		if dep == nil || len(dep.OutputData) == 0 {
			continue
		}
		input[id] = hrflow.ClonePayload(dep.OutputData)
	}
	return input, nil
}

// OnStepCompleted records the output of a running step. With
// requiresApproval the step parks behind its gate; otherwise it completes and
// any newly ready steps are dispatched. Unknown steps are ignored.
func (o *Orchestrator) OnStepCompleted(ctx context.Context, stepID string, output map[string]any, requiresApproval bool) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.OnStepCompleted",
		"workflow_id", o.state.WorkflowID,
		"step_id", stepID,
	)
	defer func() { telemetry.EndSpan(span, err) }()

	step := o.state.Step(stepID)
	if step == nil {
		return nil
	}
	if step.Status != hrflow.StatusRunning {
		hrflow.LogStepIgnored(o.logger, o.state.WorkflowID, stepID, step.Status, "complete")
		return nil
	}

	now := o.now()
	if output == nil {
		output = map[string]any{}
	}
	step.OutputData = output
	step.CompletedAt = &now
	o.state.CurrentStep = stepID

	if requiresApproval {
		step.Status = hrflow.StatusWaitingApproval
		o.state.Status = hrflow.StatusWaitingApproval
		if err := o.save(ctx); err != nil {
			return err
		}
		hrflow.LogStepWaitingApproval(o.logger, o.state.WorkflowID, stepID)
		o.emit(ctx, hrflow.EventStepWaitingApproval, stepID, "")
		return nil
	}

	step.Status = hrflow.StatusCompleted
	o.state.Status = o.aggregateStatus()
	if err := o.save(ctx); err != nil {
		return err
	}
	hrflow.LogStepCompleted(o.logger, o.state.WorkflowID, stepID)
	o.emit(ctx, hrflow.EventStepCompleted, stepID, "")

	return o.advance(ctx)
}

// OnStepFailed fails the step and the whole workflow. Steps already in a
// terminal status and unknown steps are ignored.
func (o *Orchestrator) OnStepFailed(ctx context.Context, stepID, errMsg string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.OnStepFailed",
		"workflow_id", o.state.WorkflowID,
		"step_id", stepID,
	)
	defer func() { telemetry.EndSpan(span, err) }()

	step := o.state.Step(stepID)
	if step == nil {
		return nil
	}
	if step.Status.IsTerminal() {
		hrflow.LogStepIgnored(o.logger, o.state.WorkflowID, stepID, step.Status, "fail")
		return nil
	}

	o.state.CurrentStep = stepID
	return o.fail(ctx, step, errMsg)
}

// OnHITLDecision resolves a step waiting for approval. Approval completes the
// step and continues the workflow; rejection fails it with the feedback.
// Steps that are not waiting for approval are left untouched.
func (o *Orchestrator) OnHITLDecision(ctx context.Context, stepID string, approved bool, feedback string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.OnHITLDecision",
		"workflow_id", o.state.WorkflowID,
		"step_id", stepID,
	)
	defer func() { telemetry.EndSpan(span, err) }()

	step := o.state.Step(stepID)
	if step == nil {
		return nil
	}
	if step.Status != hrflow.StatusWaitingApproval {
		hrflow.LogStepIgnored(o.logger, o.state.WorkflowID, stepID, step.Status, "decide")
		return nil
	}

	o.state.CurrentStep = stepID
	if !approved {
		return o.fail(ctx, step, "Rejected by HITL: "+feedback)
	}

	step.Status = hrflow.StatusCompleted
	o.state.Status = o.aggregateStatus()
	if err := o.save(ctx); err != nil {
		return err
	}
	hrflow.LogStepCompleted(o.logger, o.state.WorkflowID, stepID)
	o.emit(ctx, hrflow.EventStepCompleted, stepID, "")

	return o.advance(ctx)
}

// RetryStep resets a failed step, or one stuck behind an approval that will
// never be decided, to pending and dispatches it again
func (o *Orchestrator) RetryStep(ctx context.Context, stepID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.RetryStep",
		"workflow_id", o.state.WorkflowID,
		"step_id", stepID,
	)
	defer func() { telemetry.EndSpan(span, err) }()

	step := o.state.Step(stepID)
	if step == nil {
		return hrflow.ErrStepNotFound
	}
	if step.Status != hrflow.StatusFailed && step.Status != hrflow.StatusWaitingApproval {
		return hrflow.ErrStepNotRetryable
	}

	step.Status = hrflow.StatusPending
	step.Error = ""
	step.OutputData = map[string]any{}
	step.StartedAt = nil
	step.CompletedAt = nil
	// stays failed while another step still needs its own retry
	o.state.Status = o.aggregateStatus()

	if err := o.save(ctx); err != nil {
		return err
	}
	hrflow.LogStepRetried(o.logger, o.state.WorkflowID, stepID)

	return o.ExecuteStep(ctx, stepID)
}

func (o *Orchestrator) fail(ctx context.Context, step *hrflow.WorkflowStep, errMsg string) error {
	now := o.now()
	step.Status = hrflow.StatusFailed
	step.Error = errMsg
	step.CompletedAt = &now
	o.state.Status = hrflow.StatusFailed

	if err := o.save(ctx); err != nil {
		return err
	}

	telemetry.Inc(ctx, o.metrics.WorkflowsEnded, "status", hrflow.StatusFailed.String())
	hrflow.LogStepFailed(o.logger, o.state.WorkflowID, step.StepID, errMsg)
	hrflow.LogWorkflowFailed(o.logger, o.state.WorkflowID, step.StepID, errMsg)
	o.emit(ctx, hrflow.EventStepFailed, step.StepID, errMsg)
	o.emit(ctx, hrflow.EventWorkflowFailed, step.StepID, errMsg)
	return nil
}

// advance completes the workflow when every step is done, or dispatches
// the steps whose dependencies are now satisfied
func (o *Orchestrator) advance(ctx context.Context) error {
	completed := o.state.CountByStatus(hrflow.StatusCompleted)
	total := len(o.state.Steps)
	hrflow.LogWorkflowProgress(o.logger, o.state.WorkflowID, completed, total)

	if completed == total {
		o.state.Status = hrflow.StatusCompleted
		if err := o.save(ctx); err != nil {
			return err
		}
		telemetry.Inc(ctx, o.metrics.WorkflowsEnded, "status", hrflow.StatusCompleted.String())
		hrflow.LogWorkflowCompleted(o.logger, o.state.WorkflowID, o.now().Sub(o.state.CreatedAt))
		o.emit(ctx, hrflow.EventWorkflowCompleted, "", "")
		return nil
	}

	// a branch waiting for approval does not hold back the others
	if o.state.Status == hrflow.StatusFailed {
		return nil
	}
	if ready := o.readySteps(); len(ready) > 0 {
		return o.dispatch(ctx, ready...)
	}
	return nil
}

func (o *Orchestrator) ready(step *hrflow.WorkflowStep) bool {
	if step.Status != hrflow.StatusPending {
		return false
	}
	for _, dep := range step.DependsOn {
		d := o.state.Step(dep)
		if d == nil || d.Status != hrflow.StatusCompleted {
			return false
		}
	}
	return true
}

// readySteps returns every pending step whose dependencies are completed, in
// declaration order
func (o *Orchestrator) readySteps() []*hrflow.WorkflowStep {
	var ready []*hrflow.WorkflowStep
	for _, s := range o.state.Steps {
		if o.ready(s) {
			ready = append(ready, s)
		}
	}
	return ready
}

// aggregateStatus derives the workflow status from its steps
func (o *Orchestrator) aggregateStatus() hrflow.StepStatus {
	switch {
	case o.state.CountByStatus(hrflow.StatusFailed) > 0:
		return hrflow.StatusFailed
	case o.state.CountByStatus(hrflow.StatusCompleted) == len(o.state.Steps):
		return hrflow.StatusCompleted
	case o.state.CountByStatus(hrflow.StatusWaitingApproval) > 0:
		return hrflow.StatusWaitingApproval
	default:
		return hrflow.StatusRunning
	}
}

// save overwrites the stored state. Last writer wins.
func (o *Orchestrator) save(ctx context.Context) error {
	o.state.UpdatedAt = o.now()
	o.state.Version++

	key := hrflow.WorkflowKey(o.state.WorkflowID)
	if err := hrflow.SetJSON(ctx, o.store, key, o.state, o.config.WorkflowTTL); err != nil {
		hrflow.LogPersistenceError(o.logger, key, "save", err)
		return fmt.Errorf("failed to save workflow state: %w", err)
	}
	return nil
}

// emit publishes a lifecycle event. Failures are logged only.
func (o *Orchestrator) emit(ctx context.Context, event, stepID, errMsg string) {
	if o.pub == nil {
		return
	}
	ev := hrflow.LifecycleEvent{
		Event:      event,
		WorkflowID: o.state.WorkflowID,
		CompanyID:  o.state.CompanyID,
		StepID:     stepID,
		Status:     o.state.Status,
		Error:      errMsg,
		Timestamp:  o.now(),
	}
	if err := hrflow.PublishJSON(ctx, o.pub, hrflow.DestinationEvents, ev, hrflow.PriorityNormal); err != nil {
		o.logger.Warn().Err(err).Str("event", event).Msg("Failed to publish lifecycle event")
	}
}
