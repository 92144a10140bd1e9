package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/orchestrator"
)

// StartWorkflowRequest starts a policy workflow for a stored company
type StartWorkflowRequest struct {
	CompanyID string `json:"company_id"`
	SessionID string `json:"session_id,omitempty"`
}

// handleStartWorkflow hands the stored company to the first step and
// dispatches it
func (s *Server) handleStartWorkflow(c fiber.Ctx) error {
	var req StartWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if req.CompanyID == "" {
		return hrflow.ValidationError("company_id is required")
	}

	company, err := s.loadCompany(c, req.CompanyID)
	if err != nil {
		return err
	}
	initial, err := hrflow.ToPayload(company)
	if err != nil {
		return err
	}

	ctx := c.Context()
	o := orchestrator.New(s.store, s.pub, req.CompanyID,
		s.workflowOptions(orchestrator.WithSessionID(req.SessionID))...)
	if err := o.Start(ctx, initial); err != nil {
		return err
	}
	if steps := o.State().Steps; len(steps) > 0 {
		if err := o.ExecuteStep(ctx, steps[0].StepID); err != nil {
			return err
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(o.GetProgress())
}

func (s *Server) handleGetWorkflow(c fiber.Ctx) error {
	o, err := s.loadWorkflow(c, c.Params("workflowId"))
	if err != nil {
		return err
	}
	return c.JSON(o.GetProgress())
}

// handleGetOutput returns the aggregated policy document. Steps that have
// not produced output yet are left out.
func (s *Server) handleGetOutput(c fiber.Ctx) error {
	o, err := s.loadWorkflow(c, c.Params("workflowId"))
	if err != nil {
		return err
	}

	out, err := o.Output(c.Context())
	if err != nil {
		return err
	}

	companyID := o.State().CompanyID
	companyName := "Unknown"
	if company, err := s.loadCompany(c, companyID); err == nil {
		companyName = company.Name
	}

	out["workflow_id"] = o.WorkflowID()
	out["status"] = o.State().Status
	out["company_id"] = companyID
	out["company_name"] = companyName
	out["generated_at"] = s.now()
	return c.JSON(out)
}

func (s *Server) handleRetryStep(c fiber.Ctx) error {
	o, err := s.loadWorkflow(c, c.Params("workflowId"))
	if err != nil {
		return err
	}

	if err := o.RetryStep(c.Context(), c.Params("stepId")); err != nil {
		return err
	}
	return c.JSON(o.GetProgress())
}
