package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/builder"
	"github.com/sicko7947/hrflow/domain"
	"github.com/sicko7947/hrflow/hitl"
	"github.com/sicko7947/hrflow/llm"
	"github.com/sicko7947/hrflow/messaging"
	"github.com/sicko7947/hrflow/store"
	"github.com/sicko7947/hrflow/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	now     time.Time
	store   *store.MemoryStore
	bus     *messaging.MemoryBus
	manager *hitl.Manager
	calls   atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }
	h.store = store.NewMemoryStore(store.WithMemoryClock(clock))
	h.bus = messaging.NewMemoryBus()
	t.Cleanup(func() { _ = h.bus.Close() })
	h.manager = hitl.NewManager(h.store, h.bus,
		hitl.WithLogger(zerolog.Nop()),
		hitl.WithClock(clock),
		hitl.WithMetrics(telemetry.NoopMetrics()),
	)
	return h
}

// llmReturning answers every prompt with text
func (h *harness) llmReturning(text string) llm.Client {
	return llm.ClientFunc(func(_ context.Context, _ llm.Request) (string, error) {
		h.calls.Add(1)
		return text, nil
	})
}

func (h *harness) unavailable() llm.Client {
	return llm.ClientFunc(func(_ context.Context, _ llm.Request) (string, error) {
		h.calls.Add(1)
		return "", llm.ErrUnavailable
	})
}

func (h *harness) agent(exec Executor, client llm.Client, opts ...Option) *Agent {
	base := []Option{
		WithLLM(client),
		WithApprovals(h.manager),
		WithLogger(zerolog.Nop()),
		WithClock(func() time.Time { return h.now }),
		WithMetrics(telemetry.NoopMetrics()),
		WithCompany("c1"),
		WithSession("s1"),
		WithTask("wf-1", "step-1"),
	}
	return New(exec, h.store, append(base, opts...)...)
}

func acmeInput() map[string]any {
	return map[string]any{
		"name":           "Acme",
		"industry":       "consulting",
		"employee_count": float64(40),
		"values":         []any{"Integrity"},
	}
}

func TestContextCollector_MissingFields(t *testing.T) {
	h := newHarness(t)
	a := h.agent(ContextCollector{}, h.llmReturning("{}"))

	result := a.Run(context.Background(), map[string]any{"name": "Acme"})

	assert.False(t, result.Success)
	assert.Equal(t, "Missing required fields: industry, employee_count", result.Error)
	assert.Zero(t, h.calls.Load())

	stored, err := LoadState(context.Background(), h.store, a.ID())
	require.NoError(t, err)
	assert.Equal(t, hrflow.AgentFailed, stored.Status)
	assert.Equal(t, result.Error, stored.Error)
}

func TestContextCollector_GeneratedContext(t *testing.T) {
	h := newHarness(t)
	a := h.agent(ContextCollector{}, h.llmReturning(`Here is the analysis:
{"industry_characteristics": "Project based advisory work", "recommended_grade_count": 5,
 "key_competencies_for_industry": ["Logical thinking"], "design_considerations": [], "potential_challenges": []}
Let me know if you need more.`))
	ctx := context.Background()

	result := a.Run(ctx, acmeInput())

	require.True(t, result.Success, result.Error)
	assert.True(t, result.RequiresApproval)
	assert.Equal(t, hrflow.GateContextReview, result.GateID)
	assert.Equal(t, int32(1), h.calls.Load())

	company := result.Data["company"].(map[string]any)
	assert.Equal(t, "c1", company["company_id"])
	assert.Equal(t, "startup", company["size"])
	assert.Equal(t, "consulting", company["industry"])
	enriched := result.Data["enriched_context"].(map[string]any)
	assert.Equal(t, "Project based advisory work", enriched["industry_characteristics"])

	assert.Equal(t, hrflow.AgentWaitingApproval, a.State().Status)

	require.NotEmpty(t, result.RequestID)
	req, err := h.manager.GetRequest(ctx, result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, a.ID(), req.AgentID)
	assert.Equal(t, "wf-1", req.WorkflowID)
	assert.Equal(t, "step-1", req.StepID)
	assert.Equal(t, "c1", req.CompanyID)
	assert.Equal(t, hrflow.RequestPending, req.Status)

	stored, err := LoadState(ctx, h.store, a.ID())
	require.NoError(t, err)
	assert.Equal(t, hrflow.AgentWaitingApproval, stored.Status)
	assert.Equal(t, result.RequestID, stored.Context["hitl_request_id"])
	assert.NotNil(t, stored.Context["output"])
}

func TestContextCollector_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		llm  func(h *harness) llm.Client
	}{
		{"unavailable", func(h *harness) llm.Client { return h.unavailable() }},
		{"not json", func(h *harness) llm.Client { return h.llmReturning("I cannot help with that.") }},
		{"schema violation", func(h *harness) llm.Client {
			return h.llmReturning(`{"industry_characteristics": "x", "recommended_grade_count": "six"}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			a := h.agent(ContextCollector{}, tt.llm(h))

			result := a.Run(context.Background(), acmeInput())

			require.True(t, result.Success, result.Error)
			enriched := result.Data["enriched_context"].(map[string]any)
			assert.Equal(t, 6, enriched["recommended_grade_count"])
			assert.Contains(t, enriched["industry_characteristics"], "consulting")
		})
	}
}

func TestTalentProfiler_MissingContext(t *testing.T) {
	h := newHarness(t)
	a := h.agent(TalentProfiler{}, h.llmReturning("{}"))

	result := a.Run(context.Background(), map[string]any{"collect_context": map[string]any{}})

	assert.False(t, result.Success)
	assert.Equal(t, "Missing required fields: collect_context.company", result.Error)
	assert.Zero(t, h.calls.Load())
}

func TestTalentProfiler_CompletesPartialProfile(t *testing.T) {
	h := newHarness(t)
	a := h.agent(TalentProfiler{}, h.llmReturning(`{
		"vision_statement": "Owners of client outcomes",
		"competencies": [
			{"name": "Client focus", "description": "d", "weight": 0.5,
			 "elements": [{"name": "Listening", "description": "d", "behavioral_indicators": ["asks why"]}]}
		]
	}`))

	result := a.Run(context.Background(), map[string]any{
		"collect_context": map[string]any{"company": map[string]any{"company_id": "c1", "name": "Acme"}},
	})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, hrflow.GateTalentProfile, result.GateID)

	profile, err := hrflow.DecodePayload[domain.IdealTalentProfile](result.Data["talent_profile"])
	require.NoError(t, err)
	assert.Equal(t, "Owners of client outcomes", profile.VisionStatement)
	assert.Equal(t, "c1", profile.CompanyID)
	require.Len(t, profile.Competencies, domain.CompetencyCount)
	assert.Equal(t, 6, profile.TotalElements())
	assert.Equal(t, "Client focus", profile.Competencies[0].Name)
	assert.Equal(t, []string{"asks why"}, profile.Competencies[0].Elements[0].BehavioralIndicators)
}

func TestGradingDesigner_GeneratedGrades(t *testing.T) {
	h := newHarness(t)
	a := h.agent(GradingDesigner{}, h.llmReturning(`{
		"has_dual_ladder": false,
		"grades": [
			{"level": "S1", "name": "Senior", "order": 2, "min_tenure_months": 24,
			 "competency_levels": [{"competency_name": "Problem solving", "required_level": 3}]},
			{"level": "J1", "name": "Junior", "order": 1}
		]
	}`))

	profile := domain.DefaultTalentProfile("c1", h.now)
	profileData, err := hrflow.ToPayload(profile)
	require.NoError(t, err)

	result := a.Run(context.Background(), map[string]any{
		"collect_context":         map[string]any{"company": map[string]any{"name": "Acme", "employee_count": 40}},
		"generate_talent_profile": map[string]any{"talent_profile": profileData},
	})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, hrflow.GateGradingSystem, result.GateID)

	grading, err := hrflow.DecodePayload[domain.GradingSystem](result.Data["grading_system"])
	require.NoError(t, err)
	assert.Equal(t, []string{"J1", "S1"}, grading.Levels())
	assert.Equal(t, 2, grading.MaxGradeLevel)

	senior, ok := grading.Grade("S1")
	require.True(t, ok)
	assert.Equal(t, 24, senior.MinTenureMonths)
	require.Len(t, senior.CompetencyLevels, 1)
	assert.Equal(t, profile.Competencies[0].CompetencyID, senior.CompetencyLevels[0].CompetencyID)

	junior, _ := grading.Grade("J1")
	assert.Equal(t, 12, junior.MinTenureMonths)
}

// runChain runs every executor in order with the given client, feeding each
// step the outputs of the previous ones
func runChain(t *testing.T, h *harness, client llm.Client, company map[string]any) map[string]any {
	t.Helper()
	ctx := context.Background()

	steps := []struct {
		id   string
		exec Executor
	}{
		{hrflow.StepGenerateTalentProfile, TalentProfiler{}},
		{hrflow.StepDesignGrading, GradingDesigner{}},
		{hrflow.StepDesignEvaluation, EvaluationDesigner{}},
		{hrflow.StepDesignCompensation, CompensationDesigner{}},
	}

	first := h.agent(ContextCollector{}, client).Run(ctx, company)
	require.True(t, first.Success, first.Error)
	input := map[string]any{hrflow.StepCollectContext: first.Data}

	for _, s := range steps {
		result := h.agent(s.exec, client).Run(ctx, hrflow.ClonePayload(input))
		require.True(t, result.Success, "%s: %s", s.id, result.Error)
		require.True(t, result.RequiresApproval)
		input[s.id] = result.Data
	}
	return input
}

func TestExecutors_FallbackChain(t *testing.T) {
	h := newHarness(t)
	out := runChain(t, h, h.unavailable(), map[string]any{
		"name":           "Acme",
		"industry":       "consulting",
		"employee_count": 120,
	})

	grading, err := hrflow.DecodePayload[domain.GradingSystem](out[hrflow.StepDesignGrading].(map[string]any)["grading_system"])
	require.NoError(t, err)
	assert.Len(t, grading.Grades, 6)
	assert.True(t, grading.HasDualLadder)

	evaluation, err := hrflow.DecodePayload[domain.EvaluationSystem](out[hrflow.StepDesignEvaluation].(map[string]any)["evaluation_system"])
	require.NoError(t, err)
	assert.Equal(t, 0.6, evaluation.CompetencyWeight)
	assert.Equal(t, 0.4, evaluation.PerformanceWeight)
	tmpl, ok := evaluation.TemplateFor("J1")
	require.True(t, ok)
	assert.True(t, tmpl.WeightsBalanced())

	comp, err := hrflow.DecodePayload[domain.CompensationSystem](out[hrflow.StepDesignCompensation].(map[string]any)["compensation_system"])
	require.NoError(t, err)
	assert.Equal(t, 1.2, comp.IndustryMultiplier)
	band, ok := comp.BandFor("J1", "general")
	require.True(t, ok)
	assert.Equal(t, 4_200_000, band.MinSalary)
	assert.Len(t, comp.SalaryBands, 6)

	// one request per gate, all pending
	pending, err := h.manager.GetPendingRequests(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, pending, 5)
}

func TestCompensationDesigner_MissingFields(t *testing.T) {
	h := newHarness(t)
	a := h.agent(CompensationDesigner{}, h.llmReturning("{}"))

	result := a.Run(context.Background(), map[string]any{
		"collect_context": map[string]any{"company": map[string]any{"name": "Acme"}},
	})

	assert.False(t, result.Success)
	assert.Equal(t, "Missing required fields: design_grading.grading_system, design_evaluation.evaluation_system", result.Error)
	assert.Zero(t, h.calls.Load())
}

func TestCompensationDesigner_GeneratedBands(t *testing.T) {
	h := newHarness(t)
	company := &domain.Company{CompanyID: "c1", Name: "Acme", Industry: domain.IndustrySaaS, EmployeeCount: 40}
	grading := domain.DefaultGradingSystem(company, h.now)
	evaluation := domain.DefaultEvaluationSystem("c1", nil, grading, h.now)

	input := map[string]any{}
	for step, v := range map[string]map[string]any{
		hrflow.StepCollectContext:   {"company": company},
		hrflow.StepDesignGrading:    {"grading_system": grading},
		hrflow.StepDesignEvaluation: {"evaluation_system": evaluation},
	} {
		p, err := hrflow.ToPayload(v)
		require.NoError(t, err)
		input[step] = p
	}

	a := h.agent(CompensationDesigner{}, h.llmReturning(`{
		"market_position": "75th percentile",
		"bonus_months": 3.5,
		"salary_bands": [{"grade_level": "J1", "min_salary": 4000000, "max_salary": 5000000}]
	}`))
	result := a.Run(context.Background(), input)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, hrflow.GateCompensation, result.GateID)

	comp, err := hrflow.DecodePayload[domain.CompensationSystem](result.Data["compensation_system"])
	require.NoError(t, err)
	assert.Equal(t, "75th percentile", comp.MarketPosition)
	assert.Equal(t, 3.5, comp.TotalBonusMonths)
	require.Len(t, comp.SalaryBands, 1)
	assert.Equal(t, 4_500_000, comp.SalaryBands[0].MidSalary)
	assert.NotEmpty(t, comp.BonusStructures)
	assert.NotEmpty(t, comp.Allowances)
}

type execFunc struct {
	typ string
	fn  func(ctx context.Context, b *Base, input map[string]any) Result
}

func (e execFunc) Type() string { return e.typ }

func (e execFunc) Execute(ctx context.Context, b *Base, input map[string]any) Result {
	return e.fn(ctx, b, input)
}

func TestRun_RecoversPanic(t *testing.T) {
	h := newHarness(t)
	a := h.agent(execFunc{typ: "boom", fn: func(context.Context, *Base, map[string]any) Result {
		panic("nil company")
	}}, nil)

	var result Result
	require.NotPanics(t, func() {
		result = a.Run(context.Background(), map[string]any{})
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "nil company")

	stored, err := LoadState(context.Background(), h.store, a.ID())
	require.NoError(t, err)
	assert.Equal(t, hrflow.AgentFailed, stored.Status)
	assert.Contains(t, stored.Error, "nil company")
}

type failingStore struct {
	hrflow.Store
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func TestRun_PersistenceFailure(t *testing.T) {
	h := newHarness(t)
	var executed bool
	exec := execFunc{typ: "noop", fn: func(context.Context, *Base, map[string]any) Result {
		executed = true
		return Result{Success: true}
	}}
	a := New(exec, failingStore{Store: h.store}, WithLogger(zerolog.Nop()), WithMetrics(telemetry.NoopMetrics()))

	result := a.Run(context.Background(), nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connection refused")
	assert.False(t, executed)
	assert.Equal(t, hrflow.AgentFailed, a.State().Status)
}

func TestRun_Heartbeat(t *testing.T) {
	h := newHarness(t)
	key := ""
	exec := execFunc{typ: "slow", fn: func(ctx context.Context, b *Base, _ map[string]any) Result {
		key = hrflow.AgentHeartbeatKey(b.ID())
		assert.Eventually(t, func() bool {
			ok, _ := h.store.Exists(ctx, key)
			return ok
		}, time.Second, 5*time.Millisecond)
		return Result{Success: true, Data: map[string]any{"done": true}}
	}}
	a := h.agent(exec, nil, WithHeartbeatInterval(10*time.Millisecond))

	result := a.Run(context.Background(), nil)
	require.True(t, result.Success)
	assert.Equal(t, hrflow.AgentCompleted, a.State().Status)

	value, err := h.store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, h.now.Format(time.RFC3339Nano), string(value))

	// heartbeat TTL is three intervals
	h.now = h.now.Add(31 * time.Millisecond)
	ok, err := h.store.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResumeAfterApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("approved", func(t *testing.T) {
		h := newHarness(t)
		a := h.agent(ContextCollector{}, h.unavailable())
		first := a.Run(ctx, acmeInput())
		require.True(t, first.Success)

		state, err := LoadState(ctx, h.store, a.ID())
		require.NoError(t, err)
		restored := Restore(ContextCollector{}, state, h.store, WithLogger(zerolog.Nop()), WithMetrics(telemetry.NoopMetrics()))

		result := restored.ResumeAfterApproval(ctx, true, "looks good")
		require.True(t, result.Success)
		assert.Contains(t, result.Data, "company")
		assert.Contains(t, result.Data, "enriched_context")

		stored, err := LoadState(ctx, h.store, a.ID())
		require.NoError(t, err)
		assert.Equal(t, hrflow.AgentRunning, stored.Status)
		assert.Equal(t, "looks good", stored.Context["hitl_feedback"])
	})

	t.Run("rejected", func(t *testing.T) {
		h := newHarness(t)
		a := h.agent(ContextCollector{}, h.unavailable())
		require.True(t, a.Run(ctx, acmeInput()).Success)

		result := a.ResumeAfterApproval(ctx, false, "wrong industry")
		assert.False(t, result.Success)
		assert.Equal(t, "Rejected by HITL: wrong industry", result.Error)

		stored, err := LoadState(ctx, h.store, a.ID())
		require.NoError(t, err)
		assert.Equal(t, hrflow.AgentFailed, stored.Status)
		assert.Equal(t, result.Error, stored.Error)
	})
}

func TestLoadState_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := LoadState(context.Background(), h.store, "missing")
	assert.ErrorIs(t, err, hrflow.ErrAgentNotFound)
}

func TestRequestApproval_WithoutManager(t *testing.T) {
	h := newHarness(t)
	a := h.agent(ContextCollector{}, h.unavailable(), WithApprovals(nil))

	result := a.Run(context.Background(), acmeInput())
	require.True(t, result.Success)
	assert.True(t, result.RequiresApproval)
	assert.Empty(t, result.RequestID)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{
		hrflow.AgentCompensationDesigner,
		hrflow.AgentContextCollector,
		hrflow.AgentEvaluationDesigner,
		hrflow.AgentGradingDesigner,
		hrflow.AgentTalentProfiler,
	}, r.Types())

	exec, err := r.Get(hrflow.AgentGradingDesigner)
	require.NoError(t, err)
	assert.Equal(t, hrflow.AgentGradingDesigner, exec.Type())

	profiler, err := r.Get("talent_profile_generator")
	require.NoError(t, err)
	assert.Equal(t, "agent.talent_profile_generator.tasks", hrflow.AgentTaskDestination(profiler.Type()))

	_, err = r.Get("unknown")
	assert.Error(t, err)

	assert.NoError(t, builder.ValidateTemplate(builder.HRPolicyTemplate(), r.Types()))
}
