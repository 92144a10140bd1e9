package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/builder"
	"github.com/sicko7947/hrflow/messaging"
	"github.com/sicko7947/hrflow/store"
	"github.com/sicko7947/hrflow/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allSteps = []string{
	hrflow.StepCollectContext,
	hrflow.StepGenerateTalentProfile,
	hrflow.StepDesignGrading,
	hrflow.StepDesignEvaluation,
	hrflow.StepDesignCompensation,
}

type harness struct {
	now   time.Time
	store *store.MemoryStore
	bus   *messaging.MemoryBus
}

func newHarness() *harness {
	h := &harness{now: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
	h.store = store.NewMemoryStore(store.WithMemoryClock(h.clock))
	h.bus = messaging.NewMemoryBus()
	return h
}

func (h *harness) clock() time.Time { return h.now }

func (h *harness) opts(extra ...Option) []Option {
	return append([]Option{
		WithLogger(zerolog.Nop()),
		WithClock(h.clock),
		WithMetrics(telemetry.NoopMetrics()),
	}, extra...)
}

func (h *harness) newWorkflow(t *testing.T, companyID string) *Orchestrator {
	t.Helper()
	o := New(h.store, h.bus, companyID, h.opts()...)
	require.NoError(t, o.Start(context.Background(), map[string]any{"name": "Acme"}))
	return o
}

func (h *harness) tasks(agentType string) []hrflow.TaskMessage {
	var out []hrflow.TaskMessage
	for _, m := range h.bus.Published(hrflow.AgentTaskDestination(agentType)) {
		var task hrflow.TaskMessage
		if err := json.Unmarshal(m.Body, &task); err == nil {
			out = append(out, task)
		}
	}
	return out
}

func (h *harness) events() []string {
	var out []string
	for _, m := range h.bus.Published(hrflow.DestinationEvents) {
		var ev hrflow.LifecycleEvent
		if err := json.Unmarshal(m.Body, &ev); err == nil {
			out = append(out, ev.Event)
		}
	}
	return out
}

func TestNew(t *testing.T) {
	h := newHarness()
	o := New(h.store, h.bus, "C1", h.opts(WithSessionID("sess-1"))...)

	state := o.State()
	assert.NotEmpty(t, state.WorkflowID)
	assert.Equal(t, "C1", state.CompanyID)
	assert.Equal(t, "sess-1", state.SessionID)
	assert.Equal(t, hrflow.StatusPending, state.Status)
	require.Len(t, state.Steps, 5)

	for i, s := range state.Steps {
		assert.Equal(t, allSteps[i], s.StepID)
		assert.Equal(t, hrflow.StatusPending, s.Status)
		if i == 0 {
			assert.Empty(t, s.DependsOn)
		} else {
			assert.Equal(t, []string{allSteps[i-1]}, s.DependsOn)
		}
	}

	other := New(h.store, h.bus, "C1", h.opts()...)
	assert.NotEqual(t, state.WorkflowID, other.WorkflowID())
	assert.NotEmpty(t, other.State().SessionID)

	// Nothing persisted before Start
	assert.Empty(t, h.store.Keys())
	assert.Empty(t, h.bus.Published(""))
}

func TestStart(t *testing.T) {
	h := newHarness()
	o := h.newWorkflow(t, "C1")

	assert.Equal(t, hrflow.StatusRunning, o.State().Status)
	assert.Equal(t, map[string]any{"name": "Acme"}, o.State().Context["initial_data"])
	assert.Equal(t, "Acme", o.State().Steps[0].InputData["name"])

	exists, err := h.store.Exists(context.Background(), hrflow.WorkflowKey(o.WorkflowID()))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []string{hrflow.EventWorkflowStarted}, h.events())
}

func TestStart_PersistenceFailure(t *testing.T) {
	h := newHarness()
	o := New(failingStore{h.store}, h.bus, "C1", h.opts()...)
	err := o.Start(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, h.events())
}

func TestLoad(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))
	require.NoError(t, o.OnStepCompleted(ctx, hrflow.StepCollectContext, map[string]any{"company": map[string]any{"name": "Acme"}}, true))

	a, err := Load(ctx, h.store, h.bus, o.WorkflowID(), h.opts()...)
	require.NoError(t, err)
	b, err := Load(ctx, h.store, h.bus, o.WorkflowID(), h.opts()...)
	require.NoError(t, err)

	assert.NotSame(t, a.State(), b.State())
	assert.Equal(t, a.State(), b.State())

	loaded := a.State()
	assert.Equal(t, o.State().Status, loaded.Status)
	assert.Equal(t, o.State().Version, loaded.Version)
	assert.Equal(t, map[string]any{"name": "Acme"}, loaded.Context["initial_data"])
	for i, s := range o.State().Steps {
		assert.Equal(t, s.Status, loaded.Steps[i].Status)
		assert.Equal(t, s.DependsOn, loaded.Steps[i].DependsOn)
	}
	assert.Equal(t, "Acme", loaded.Steps[0].OutputData["company"].(map[string]any)["name"])

	_, err = Load(ctx, h.store, h.bus, "missing", h.opts()...)
	assert.ErrorIs(t, err, hrflow.ErrWorkflowNotFound)
}

func TestExecuteStep(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")

	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))

	step := o.State().Step(hrflow.StepCollectContext)
	assert.Equal(t, hrflow.StatusRunning, step.Status)
	require.NotNil(t, step.StartedAt)
	assert.Equal(t, h.now, *step.StartedAt)
	assert.Equal(t, hrflow.StepCollectContext, o.State().CurrentStep)

	tasks := h.tasks(hrflow.AgentContextCollector)
	require.Len(t, tasks, 1)
	assert.Equal(t, o.WorkflowID(), tasks[0].WorkflowID)
	assert.Equal(t, hrflow.StepCollectContext, tasks[0].StepID)
	assert.Equal(t, "C1", tasks[0].CompanyID)
	assert.Equal(t, "Acme", tasks[0].InputData["name"])

	// Persisted before publish
	loaded, err := Load(ctx, h.store, h.bus, o.WorkflowID(), h.opts()...)
	require.NoError(t, err)
	assert.Equal(t, hrflow.StatusRunning, loaded.State().Step(hrflow.StepCollectContext).Status)
}

func TestExecuteStep_UnknownStep(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")

	before, err := json.Marshal(o.State())
	require.NoError(t, err)
	h.bus.Reset()

	err = o.ExecuteStep(ctx, "no_such_step")
	assert.ErrorIs(t, err, hrflow.ErrStepNotFound)

	after, err := json.Marshal(o.State())
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.Empty(t, h.bus.Published(""))
}

func TestExecuteStep_NotReady(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")

	err := o.ExecuteStep(ctx, hrflow.StepDesignGrading)
	assert.ErrorIs(t, err, hrflow.ErrStepNotReady)
	assert.Equal(t, hrflow.StatusPending, o.State().Step(hrflow.StepDesignGrading).Status)

	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))
	assert.ErrorIs(t, o.ExecuteStep(ctx, hrflow.StepCollectContext), hrflow.ErrStepNotReady)
}

func TestExecuteStep_PublishFailure(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")
	require.NoError(t, h.bus.Close())

	err := o.ExecuteStep(ctx, hrflow.StepCollectContext)
	assert.ErrorIs(t, err, messaging.ErrBusClosed)
}

func TestExecuteStep_MergesAncestorOutputs(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")

	outputs := map[string]map[string]any{
		hrflow.StepCollectContext:        {"company": map[string]any{"name": "Acme"}},
		hrflow.StepGenerateTalentProfile: {"talent_profile": map[string]any{"id": "tp"}},
		hrflow.StepDesignGrading:         {"grading_system": map[string]any{"id": "gs"}},
	}
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))
	for _, id := range allSteps[:3] {
		require.Equal(t, hrflow.StatusRunning, o.State().Step(id).Status, id)
		require.NoError(t, o.OnStepCompleted(ctx, id, outputs[id], false))
	}

	tasks := h.tasks(hrflow.AgentEvaluationDesigner)
	require.Len(t, tasks, 1)
	input := tasks[0].InputData
	assert.Equal(t, outputs[hrflow.StepCollectContext], input[hrflow.StepCollectContext])
	assert.Equal(t, outputs[hrflow.StepGenerateTalentProfile], input[hrflow.StepGenerateTalentProfile])
	assert.Equal(t, outputs[hrflow.StepDesignGrading], input[hrflow.StepDesignGrading])

	v, ok := hrflow.LookupPath(input, hrflow.StepDesignGrading, "grading_system", "id")
	require.True(t, ok)
	assert.Equal(t, "gs", v)
}

func TestOnStepCompleted_RequiresApproval(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))

	require.NoError(t, o.OnStepCompleted(ctx, hrflow.StepCollectContext, map[string]any{"company": "x"}, true))

	step := o.State().Step(hrflow.StepCollectContext)
	assert.Equal(t, hrflow.StatusWaitingApproval, step.Status)
	assert.Equal(t, hrflow.StatusWaitingApproval, o.State().Status)
	assert.NotNil(t, step.CompletedAt)
	assert.Equal(t, "x", step.OutputData["company"])
	assert.Empty(t, h.tasks(hrflow.AgentTalentProfiler))
	assert.Equal(t, 0, o.GetProgress().Percent)
}

func TestOnStepCompleted_DispatchesNext(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))

	require.NoError(t, o.OnStepCompleted(ctx, hrflow.StepCollectContext, map[string]any{"company": "x"}, false))

	assert.Equal(t, hrflow.StatusCompleted, o.State().Step(hrflow.StepCollectContext).Status)
	assert.Equal(t, hrflow.StatusRunning, o.State().Step(hrflow.StepGenerateTalentProfile).Status)
	assert.Equal(t, hrflow.StatusRunning, o.State().Status)
	assert.Len(t, h.tasks(hrflow.AgentTalentProfiler), 1)
}

func TestOnStepCompleted_Ignored(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")

	// Unknown step
	require.NoError(t, o.OnStepCompleted(ctx, "nope", map[string]any{}, false))

	// Pending step never dispatched
	require.NoError(t, o.OnStepCompleted(ctx, hrflow.StepDesignGrading, map[string]any{"x": 1}, false))
	assert.Equal(t, hrflow.StatusPending, o.State().Step(hrflow.StepDesignGrading).Status)

	// Terminal step
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))
	require.NoError(t, o.OnStepFailed(ctx, hrflow.StepCollectContext, "boom"))
	require.NoError(t, o.OnStepCompleted(ctx, hrflow.StepCollectContext, map[string]any{"x": 1}, false))
	assert.Equal(t, hrflow.StatusFailed, o.State().Step(hrflow.StepCollectContext).Status)
	assert.Equal(t, hrflow.StatusFailed, o.State().Status)
}

func TestOnStepFailed(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))

	require.NoError(t, o.OnStepFailed(ctx, hrflow.StepCollectContext, "llm exploded"))

	step := o.State().Step(hrflow.StepCollectContext)
	assert.Equal(t, hrflow.StatusFailed, step.Status)
	assert.Equal(t, "llm exploded", step.Error)
	assert.Equal(t, hrflow.StatusFailed, o.State().Status)
	assert.Contains(t, h.events(), hrflow.EventWorkflowFailed)

	// No automatic retry
	assert.Len(t, h.tasks(hrflow.AgentContextCollector), 1)

	require.NoError(t, o.OnStepFailed(ctx, "nope", "x"))
	require.NoError(t, o.OnStepFailed(ctx, hrflow.StepCollectContext, "second"))
	assert.Equal(t, "llm exploded", step.Error)
}

func TestOnHITLDecision_Rejected(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))
	require.NoError(t, o.OnStepCompleted(ctx, hrflow.StepCollectContext, map[string]any{"company": "x"}, true))

	require.NoError(t, o.OnHITLDecision(ctx, hrflow.StepCollectContext, false, "X"))

	step := o.State().Step(hrflow.StepCollectContext)
	assert.Equal(t, hrflow.StatusFailed, step.Status)
	assert.Contains(t, step.Error, "X")
	assert.Equal(t, "Rejected by HITL: X", step.Error)
	assert.Equal(t, hrflow.StatusFailed, o.State().Status)

	// A later approval does not revive the terminal step
	require.NoError(t, o.OnHITLDecision(ctx, hrflow.StepCollectContext, true, ""))
	assert.Equal(t, hrflow.StatusFailed, step.Status)
	assert.Equal(t, hrflow.StatusFailed, o.State().Status)
	assert.Empty(t, h.tasks(hrflow.AgentTalentProfiler))
}

func TestOnHITLDecision_NotWaiting(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))

	require.NoError(t, o.OnHITLDecision(ctx, hrflow.StepCollectContext, true, ""))
	assert.Equal(t, hrflow.StatusRunning, o.State().Step(hrflow.StepCollectContext).Status)

	require.NoError(t, o.OnHITLDecision(ctx, "nope", true, ""))
}

func TestEndToEnd_FirstApproval(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	o := New(h.store, h.bus, "C1", h.opts()...)
	require.NoError(t, o.Start(ctx, map[string]any{"name": "Acme"}))
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))
	require.NoError(t, o.OnStepCompleted(ctx, hrflow.StepCollectContext,
		map[string]any{"company": map[string]any{"name": "Acme"}}, true))
	require.NoError(t, o.OnHITLDecision(ctx, hrflow.StepCollectContext, true, ""))

	p := o.GetProgress()
	assert.Equal(t, "1/5", p.Progress)
	assert.Equal(t, 20, p.Percent)
	assert.Equal(t, hrflow.StepCollectContext, p.CurrentStep)
	assert.Equal(t, hrflow.StatusRunning, p.Status)
	assert.Equal(t, hrflow.StatusCompleted, p.Steps[0].Status)
	assert.Equal(t, hrflow.StatusRunning, p.Steps[1].Status)

	tasks := h.tasks(hrflow.AgentTalentProfiler)
	require.Len(t, tasks, 1)
	v, ok := hrflow.LookupPath(tasks[0].InputData, hrflow.StepCollectContext, "company", "name")
	require.True(t, ok)
	assert.Equal(t, "Acme", v)
}

func TestEndToEnd_AllSteps(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")

	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))

	last := -1
	for i, id := range allSteps {
		// Each completion goes through a freshly loaded orchestrator
		cur, err := Load(ctx, h.store, h.bus, o.WorkflowID(), h.opts()...)
		require.NoError(t, err)
		require.Equal(t, hrflow.StatusRunning, cur.State().Step(id).Status, id)

		require.NoError(t, cur.OnStepCompleted(ctx, id, map[string]any{"step": id}, true))
		assert.Equal(t, hrflow.StatusWaitingApproval, cur.GetProgress().Status)
		require.NoError(t, cur.OnHITLDecision(ctx, id, true, ""))

		p := cur.GetProgress()
		assert.GreaterOrEqual(t, p.Percent, last)
		last = p.Percent
		assert.Equal(t, (i+1)*20, p.Percent)
	}

	final, err := Load(ctx, h.store, h.bus, o.WorkflowID(), h.opts()...)
	require.NoError(t, err)
	assert.Equal(t, hrflow.StatusCompleted, final.State().Status)
	assert.Equal(t, "5/5", final.GetProgress().Progress)
	assert.Contains(t, h.events(), hrflow.EventWorkflowCompleted)
}

func TestRetryStep(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))

	assert.ErrorIs(t, o.RetryStep(ctx, hrflow.StepCollectContext), hrflow.ErrStepNotRetryable)
	assert.ErrorIs(t, o.RetryStep(ctx, "nope"), hrflow.ErrStepNotFound)

	require.NoError(t, o.OnStepFailed(ctx, hrflow.StepCollectContext, "boom"))
	h.now = h.now.Add(time.Minute)

	require.NoError(t, o.RetryStep(ctx, hrflow.StepCollectContext))

	step := o.State().Step(hrflow.StepCollectContext)
	assert.Equal(t, hrflow.StatusRunning, step.Status)
	assert.Empty(t, step.Error)
	assert.Nil(t, step.CompletedAt)
	assert.Equal(t, h.now, *step.StartedAt)
	assert.Equal(t, hrflow.StatusRunning, o.State().Status)
	assert.Len(t, h.tasks(hrflow.AgentContextCollector), 2)
}

func TestRetryStep_WaitingForApproval(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))
	require.NoError(t, o.OnStepCompleted(ctx, hrflow.StepCollectContext, map[string]any{"x": 1}, true))
	require.Equal(t, hrflow.StatusWaitingApproval, o.State().Status)

	// the request behind the gate expired, so no decision will arrive
	require.NoError(t, o.RetryStep(ctx, hrflow.StepCollectContext))

	step := o.State().Step(hrflow.StepCollectContext)
	assert.Equal(t, hrflow.StatusRunning, step.Status)
	assert.Empty(t, step.OutputData)
	assert.Equal(t, hrflow.StatusRunning, o.State().Status)
	assert.Len(t, h.tasks(hrflow.AgentContextCollector), 2)

	// a late decision for the superseded attempt is ignored
	require.NoError(t, o.OnHITLDecision(ctx, hrflow.StepCollectContext, true, ""))
	assert.Equal(t, hrflow.StatusRunning, o.State().Step(hrflow.StepCollectContext).Status)
}

func TestProgress_Percent(t *testing.T) {
	state := &hrflow.WorkflowState{WorkflowID: "wf", Steps: builder.HRPolicyTemplate().NewSteps()}

	for completed := 0; completed <= 5; completed++ {
		for i, s := range state.Steps {
			s.Status = hrflow.StatusPending
			if i < completed {
				s.Status = hrflow.StatusCompleted
			}
		}
		p := ProgressOf(state)
		assert.Equal(t, completed*20, p.Percent)
		assert.Len(t, p.Steps, 5)
	}

	custom, err := hrflow.NewTemplate("three", []hrflow.StepTemplate{
		{StepID: "a", AgentType: "x"},
		{StepID: "b", AgentType: "x", DependsOn: []string{"a"}},
		{StepID: "c", AgentType: "x", DependsOn: []string{"b"}},
	})
	require.NoError(t, err)
	three := &hrflow.WorkflowState{Steps: custom.NewSteps()}
	three.Steps[0].Status = hrflow.StatusCompleted
	three.Steps[1].Status = hrflow.StatusCompleted
	assert.Equal(t, 67, ProgressOf(three).Percent)
	assert.Equal(t, 0, ProgressOf(&hrflow.WorkflowState{}).Percent)
}

func TestFanOut(t *testing.T) {
	tmpl := builder.NewTemplate("fan").
		ThenStep("root", "root_agent").
		Parallel(builder.Step("left", "left_agent"), builder.Step("right", "right_agent")).
		MustBuild()

	h := newHarness()
	ctx := context.Background()
	o := New(h.store, h.bus, "C1", h.opts(WithTemplate(tmpl))...)
	require.NoError(t, o.Start(ctx, nil))
	require.NoError(t, o.ExecuteStep(ctx, "root"))
	require.NoError(t, o.OnStepCompleted(ctx, "root", map[string]any{"v": 1}, false))

	assert.Equal(t, hrflow.StatusRunning, o.State().Step("left").Status)
	assert.Equal(t, hrflow.StatusRunning, o.State().Step("right").Status)
	assert.Len(t, h.tasks("left_agent"), 1)
	assert.Len(t, h.tasks("right_agent"), 1)

	require.NoError(t, o.OnStepCompleted(ctx, "left", map[string]any{}, true))
	assert.Equal(t, hrflow.StatusWaitingApproval, o.State().Status)

	require.NoError(t, o.OnStepCompleted(ctx, "right", map[string]any{}, false))
	assert.Equal(t, hrflow.StatusWaitingApproval, o.State().Status)

	require.NoError(t, o.OnHITLDecision(ctx, "left", true, ""))
	assert.Equal(t, hrflow.StatusCompleted, o.State().Status)
}

func TestFanOut_BranchWaitingForApproval(t *testing.T) {
	tmpl, err := hrflow.NewTemplate("fan", []hrflow.StepTemplate{
		{StepID: "root", AgentType: "root_agent"},
		{StepID: "left", AgentType: "left_agent", DependsOn: []string{"root"}},
		{StepID: "right", AgentType: "right_agent", DependsOn: []string{"root"}},
		{StepID: "after_right", AgentType: "after_agent", DependsOn: []string{"right"}},
	})
	require.NoError(t, err)

	h := newHarness()
	ctx := context.Background()
	o := New(h.store, h.bus, "C1", h.opts(WithTemplate(tmpl))...)
	require.NoError(t, o.Start(ctx, nil))
	require.NoError(t, o.ExecuteStep(ctx, "root"))
	require.NoError(t, o.OnStepCompleted(ctx, "root", map[string]any{}, false))

	require.NoError(t, o.OnStepCompleted(ctx, "left", map[string]any{}, true))
	require.NoError(t, o.OnStepCompleted(ctx, "right", map[string]any{"r": 1}, false))

	assert.Equal(t, hrflow.StatusRunning, o.State().Step("after_right").Status)
	assert.Equal(t, hrflow.StatusWaitingApproval, o.State().Status)
	tasks := h.tasks("after_agent")
	require.Len(t, tasks, 1)
	assert.Equal(t, map[string]any{"r": float64(1)}, tasks[0].InputData["right"])

	stored, err := Load(ctx, h.store, h.bus, o.WorkflowID(), h.opts(WithTemplate(tmpl))...)
	require.NoError(t, err)
	assert.Equal(t, hrflow.StatusRunning, stored.State().Step("after_right").Status)

	// a rejected branch fails the workflow and stops further dispatch
	require.NoError(t, o.OnHITLDecision(ctx, "left", false, "no"))
	assert.Equal(t, hrflow.StatusFailed, o.State().Status)
	require.NoError(t, o.OnStepCompleted(ctx, "after_right", map[string]any{}, false))
	assert.Equal(t, hrflow.StatusCompleted, o.State().Step("after_right").Status)
	assert.Equal(t, hrflow.StatusFailed, o.State().Status)
}

func TestOutput(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o := h.newWorkflow(t, "C1")
	require.NoError(t, o.ExecuteStep(ctx, hrflow.StepCollectContext))
	require.NoError(t, o.OnStepCompleted(ctx, hrflow.StepCollectContext, map[string]any{
		"company":          map[string]any{"name": "Acme"},
		"enriched_context": map[string]any{"challenges": []any{"growth"}},
	}, false))
	require.NoError(t, o.OnStepCompleted(ctx, hrflow.StepGenerateTalentProfile, map[string]any{
		"talent_profile": map[string]any{"core_values": []any{"ownership"}},
	}, false))

	out, err := o.Output(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"challenges": []any{"growth"}}, out["enriched_context"])
	assert.Equal(t, map[string]any{"core_values": []any{"ownership"}}, out["talent_profile"])
	assert.NotContains(t, out, "grading_system")
	assert.NotContains(t, out, "company")
}

// failingStore rejects every write
type failingStore struct {
	hrflow.Store
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store unavailable")
}
