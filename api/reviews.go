package api

import (
	"slices"

	"github.com/gofiber/fiber/v3"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/hitl"
)

// DecisionRequest is the body of a review decision
type DecisionRequest struct {
	Approved  *bool  `json:"approved"`
	Feedback  string `json:"feedback,omitempty"`
	DecidedBy string `json:"decided_by,omitempty"`
}

func (s *Server) handlePendingReviews(c fiber.Ctx) error {
	pending, err := s.reviews.GetPendingRequests(c.Context(), c.Params("companyId"))
	if err != nil {
		return err
	}
	if pending == nil {
		pending = []*hrflow.HITLRequest{}
	}
	return c.JSON(pending)
}

func (s *Server) handleGetReview(c fiber.Ctx) error {
	req, err := s.reviews.GetRequest(c.Context(), c.Params("requestId"))
	if err != nil {
		return err
	}
	return c.JSON(req)
}

// handleSubmitDecision records the decision. The workflow advances when the
// worker consumes the published decision.
func (s *Server) handleSubmitDecision(c fiber.Ctx) error {
	var body DecisionRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest("Invalid request body")
	}
	if body.Approved == nil {
		return hrflow.ValidationError("approved is required")
	}
	decidedBy := body.DecidedBy
	if decidedBy == "" {
		decidedBy = "user"
	}

	decision, err := s.reviews.SubmitDecision(c.Context(), c.Params("requestId"), *body.Approved, body.Feedback, decidedBy)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"request_id":  decision.RequestID,
		"workflow_id": decision.WorkflowID,
		"approved":    decision.Approved,
		"decided_at":  decision.DecidedAt,
	})
}

func (s *Server) handleCancelReview(c fiber.Ctx) error {
	requestID := c.Params("requestId")
	if _, err := s.reviews.CancelRequest(c.Context(), requestID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "cancelled", "request_id": requestID})
}

func (s *Server) handleListGates(c fiber.Ctx) error {
	known := hitl.KnownGates()
	out := make([]hitl.GateInfo, 0, len(known))
	for _, id := range known {
		out = append(out, s.reviews.GateInfo(id))
	}
	return c.JSON(out)
}

func (s *Server) handleGetGate(c fiber.Ctx) error {
	id := hrflow.GateID(c.Params("gateId"))
	if !slices.Contains(hitl.KnownGates(), id) {
		return fiber.NewError(fiber.StatusNotFound, "gate not found")
	}
	return c.JSON(s.reviews.GateInfo(id))
}
