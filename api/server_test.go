package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/agent"
	"github.com/sicko7947/hrflow/hitl"
	"github.com/sicko7947/hrflow/messaging"
	"github.com/sicko7947/hrflow/store"
	"github.com/sicko7947/hrflow/telemetry"
	"github.com/sicko7947/hrflow/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	now     time.Time
	store   *store.MemoryStore
	bus     *messaging.MemoryBus
	manager *hitl.Manager
	app     *fiber.App
}

// newHarness builds the API over in-memory collaborators. With runAgents
// a worker consumes dispatched tasks and decisions.
func newHarness(t *testing.T, runAgents bool) *harness {
	t.Helper()

	h := &harness{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	h.store = store.NewMemoryStore(store.WithMemoryClock(h.clock))
	h.bus = messaging.NewMemoryBus(messaging.WithMemoryBusLogger(zerolog.Nop()))
	t.Cleanup(func() { _ = h.bus.Close() })

	h.manager = hitl.NewManager(h.store, h.bus,
		hitl.WithLogger(zerolog.Nop()),
		hitl.WithClock(h.clock),
		hitl.WithMetrics(telemetry.NoopMetrics()),
	)
	h.app = NewServer(h.store, h.bus, h.manager,
		WithLogger(zerolog.Nop()),
		WithClock(h.clock),
		WithMetrics(telemetry.NoopMetrics()),
	).App()

	if runAgents {
		w := worker.New(h.store, h.bus, agent.DefaultRegistry(),
			worker.WithApprovals(h.manager),
			worker.WithLogger(zerolog.Nop()),
			worker.WithClock(h.clock),
			worker.WithMetrics(telemetry.NoopMetrics()),
		)
		require.NoError(t, w.Start(context.Background()))
	}
	return h
}

func (h *harness) clock() time.Time { return h.now }

func (h *harness) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	status, raw := h.doRaw(t, method, path, body)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func (h *harness) doRaw(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (h *harness) createCompany(t *testing.T) string {
	t.Helper()
	status, body := h.do(t, http.MethodPost, "/api/v1/companies", `{
		"name": "Acme",
		"industry": "Consulting",
		"employee_count": 120,
		"values": ["Integrity", "Curiosity"]
	}`)
	require.Equal(t, http.StatusCreated, status, body)
	return body["company_id"].(string)
}

func (h *harness) pending(t *testing.T, companyID string) []map[string]any {
	t.Helper()
	status, raw := h.doRaw(t, http.MethodGet, "/api/v1/reviews/pending/"+companyID, "")
	require.Equal(t, http.StatusOK, status)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	h := newHarness(t, false)

	status, body := h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, Version, body["version"])
}

func TestCompanies(t *testing.T) {
	h := newHarness(t, false)

	id := h.createCompany(t)
	assert.NotEmpty(t, id)

	status, body := h.do(t, http.MethodGet, "/api/v1/companies/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Acme", body["name"])
	assert.Equal(t, "consulting", body["industry"])
	assert.Equal(t, "medium", body["size"])
	assert.EqualValues(t, 120, body["employee_count"])

	status, body = h.do(t, http.MethodDelete, "/api/v1/companies/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "deleted", body["status"])

	status, body = h.do(t, http.MethodGet, "/api/v1/companies/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, hrflow.ErrCodeNotFound, errorCode(body))

	status, _ = h.do(t, http.MethodDelete, "/api/v1/companies/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateCompany_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing industry", `{"name": "Acme", "employee_count": 10}`},
		{"zero employees", `{"name": "Acme", "industry": "saas", "employee_count": 0}`},
		{"fractional employees", `{"name": "Acme", "industry": "saas", "employee_count": 1.5}`},
		{"not an object", `["Acme"]`},
	}

	h := newHarness(t, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := h.do(t, http.MethodPost, "/api/v1/companies", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, hrflow.ErrCodeValidation, errorCode(body))
		})
	}

	t.Run("violations are reported", func(t *testing.T) {
		_, body := h.do(t, http.MethodPost, "/api/v1/companies", `{"employee_count": -1}`)
		details := body["error"].(map[string]any)["details"].(map[string]any)
		assert.NotEmpty(t, details["violations"])
	})

	t.Run("empty body", func(t *testing.T) {
		status, body := h.do(t, http.MethodPost, "/api/v1/companies", "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, hrflow.ErrCodeValidation, errorCode(body))
	})
}

func TestStartWorkflow(t *testing.T) {
	h := newHarness(t, false)
	id := h.createCompany(t)

	status, body := h.do(t, http.MethodPost, "/api/v1/policies/workflows", `{"company_id": "`+id+`"}`)
	require.Equal(t, http.StatusAccepted, status, body)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "0/5", body["progress"])
	assert.Equal(t, hrflow.StepCollectContext, body["current_step"])

	tasks := h.bus.Published(hrflow.AgentTaskDestination(hrflow.AgentContextCollector))
	require.Len(t, tasks, 1)
	var task hrflow.TaskMessage
	require.NoError(t, json.Unmarshal(tasks[0].Body, &task))
	assert.Equal(t, "Acme", task.InputData["name"])
	assert.Equal(t, id, task.CompanyID)

	workflowID := body["workflow_id"].(string)
	status, body = h.do(t, http.MethodGet, "/api/v1/policies/workflows/"+workflowID, "")
	require.Equal(t, http.StatusOK, status)
	steps := body["steps"].([]any)
	require.Len(t, steps, 5)
	assert.Equal(t, "running", steps[0].(map[string]any)["status"])
	assert.Equal(t, "pending", steps[1].(map[string]any)["status"])
}

func TestStartWorkflow_Errors(t *testing.T) {
	h := newHarness(t, false)

	status, body := h.do(t, http.MethodPost, "/api/v1/policies/workflows", `{"company_id": "missing"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, hrflow.ErrCodeNotFound, errorCode(body))

	status, body = h.do(t, http.MethodPost, "/api/v1/policies/workflows", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, hrflow.ErrCodeValidation, errorCode(body))

	status, _ = h.do(t, http.MethodGet, "/api/v1/policies/workflows/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWorkflow_ApprovedEndToEnd(t *testing.T) {
	h := newHarness(t, true)
	companyID := h.createCompany(t)

	status, body := h.do(t, http.MethodPost, "/api/v1/policies/workflows", `{"company_id": "`+companyID+`"}`)
	require.Equal(t, http.StatusAccepted, status)
	workflowID := body["workflow_id"].(string)
	h.bus.Wait()

	for range 5 {
		reqs := h.pending(t, companyID)
		require.Len(t, reqs, 1)
		requestID := reqs[0]["request_id"].(string)
		assert.Equal(t, workflowID, reqs[0]["workflow_id"])

		status, body = h.do(t, http.MethodPost, "/api/v1/reviews/"+requestID+"/decision", `{"approved": true}`)
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, true, body["approved"])
		h.bus.Wait()
	}

	status, body = h.do(t, http.MethodGet, "/api/v1/policies/workflows/"+workflowID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", body["status"])
	assert.EqualValues(t, 100, body["percent"])

	status, body = h.do(t, http.MethodGet, "/api/v1/policies/workflows/"+workflowID+"/output", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Acme", body["company_name"])
	assert.Equal(t, companyID, body["company_id"])
	assert.NotEmpty(t, body["generated_at"])
	for _, field := range []string{"enriched_context", "talent_profile", "grading_system", "evaluation_system", "compensation_system"} {
		assert.Contains(t, body, field)
	}
}

func TestWorkflow_RejectAndRetry(t *testing.T) {
	h := newHarness(t, true)
	companyID := h.createCompany(t)

	_, body := h.do(t, http.MethodPost, "/api/v1/policies/workflows", `{"company_id": "`+companyID+`"}`)
	workflowID := body["workflow_id"].(string)
	h.bus.Wait()

	reqs := h.pending(t, companyID)
	require.Len(t, reqs, 1)
	status, _ := h.do(t, http.MethodPost, "/api/v1/reviews/"+reqs[0]["request_id"].(string)+"/decision",
		`{"approved": false, "feedback": "Wrong industry"}`)
	require.Equal(t, http.StatusOK, status)
	h.bus.Wait()

	_, body = h.do(t, http.MethodGet, "/api/v1/policies/workflows/"+workflowID, "")
	assert.Equal(t, "failed", body["status"])
	first := body["steps"].([]any)[0].(map[string]any)
	assert.Equal(t, "Rejected by HITL: Wrong industry", first["error"])

	retryPath := "/api/v1/policies/workflows/" + workflowID + "/steps/" + hrflow.StepCollectContext + "/retry"
	status, body = h.do(t, http.MethodPost, retryPath, "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "running", body["status"])
	h.bus.Wait()

	assert.Len(t, h.pending(t, companyID), 1)

	status, body = h.do(t, http.MethodPost, retryPath, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, hrflow.ErrCodeConflict, errorCode(body))

	status, _ = h.do(t, http.MethodPost, "/api/v1/policies/workflows/"+workflowID+"/steps/nope/retry", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestReviews(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	req, err := h.manager.CreateRequest(ctx, hitl.NewRequest{
		GateID:    hrflow.GateGradingSystem,
		AgentID:   "a1",
		AgentType: hrflow.AgentGradingDesigner,
		CompanyID: "c1",
		Title:     "Grading",
	})
	require.NoError(t, err)

	status, body := h.do(t, http.MethodGet, "/api/v1/reviews/"+req.RequestID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "HITL-003", body["gate_id"])

	status, body = h.do(t, http.MethodPost, "/api/v1/reviews/"+req.RequestID+"/decision", `{"feedback": "ok"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, hrflow.ErrCodeValidation, errorCode(body))

	status, _ = h.do(t, http.MethodPost, "/api/v1/reviews/"+req.RequestID+"/decision", `{"approved": true, "decided_by": "hr-lead"}`)
	require.Equal(t, http.StatusOK, status)

	stored, err := h.manager.GetRequest(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "hr-lead", stored.DecidedBy)

	status, body = h.do(t, http.MethodPost, "/api/v1/reviews/"+req.RequestID+"/decision", `{"approved": false}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, hrflow.ErrCodeConflict, errorCode(body))

	status, _ = h.do(t, http.MethodGet, "/api/v1/reviews/missing", "")
	assert.Equal(t, http.StatusNotFound, status)

	assert.Empty(t, h.pending(t, "c1"))
}

func TestCancelReview(t *testing.T) {
	h := newHarness(t, false)

	req, err := h.manager.CreateRequest(context.Background(), hitl.NewRequest{
		GateID:    hrflow.GateContextReview,
		CompanyID: "c1",
		Title:     "Context",
	})
	require.NoError(t, err)
	require.Len(t, h.pending(t, "c1"), 1)

	status, body := h.do(t, http.MethodPost, "/api/v1/reviews/"+req.RequestID+"/cancel", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", body["status"])
	assert.Empty(t, h.pending(t, "c1"))

	status, _ = h.do(t, http.MethodPost, "/api/v1/reviews/"+req.RequestID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, status)

	status, _ = h.do(t, http.MethodPost, "/api/v1/reviews/missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGates(t *testing.T) {
	h := newHarness(t, false)

	status, raw := h.doRaw(t, http.MethodGet, "/api/v1/gates", "")
	require.Equal(t, http.StatusOK, status)
	var gates []hitl.GateInfo
	require.NoError(t, json.Unmarshal(raw, &gates))
	require.Len(t, gates, 7)
	assert.Equal(t, hrflow.GateContextReview, gates[0].GateID)

	status, body := h.do(t, http.MethodGet, "/api/v1/gates/HITL-003", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["critical"])
	assert.Equal(t, "Grading System Approval", body["name"])

	status, body = h.do(t, http.MethodGet, "/api/v1/gates/HITL-999", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, hrflow.ErrCodeNotFound, errorCode(body))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusOf(hrflow.ErrWorkflowNotFound))
	assert.Equal(t, http.StatusConflict, statusOf(hrflow.ErrStepNotRetryable))
	assert.Equal(t, http.StatusBadRequest, statusOf(hrflow.ValidationError("bad")))
	assert.Equal(t, http.StatusTeapot, statusOf(fiber.NewError(http.StatusTeapot, "tea")))
	assert.Equal(t, http.StatusInternalServerError, statusOf(io.ErrUnexpectedEOF))
}
