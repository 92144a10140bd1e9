package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sicko7947/hrflow"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

var statusByCode = map[string]int{
	hrflow.ErrCodeValidation:      fiber.StatusBadRequest,
	hrflow.ErrCodeNotFound:        fiber.StatusNotFound,
	hrflow.ErrCodeConflict:        fiber.StatusConflict,
	hrflow.ErrCodeExecutionFailed: fiber.StatusUnprocessableEntity,
	hrflow.ErrCodeInternalError:   fiber.StatusInternalServerError,
}

// statusOf maps an error to the HTTP status it is reported with
func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if status, ok := statusByCode[hrflow.ErrorCode(err)]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleError(c fiber.Ctx, err error) error {
	status := statusOf(err)

	resp := ErrorResponse{Code: hrflow.ErrorCode(err), Message: err.Error()}

	var fe *fiber.Error
	var he *hrflow.Error
	switch {
	case errors.As(err, &fe):
		resp.Code = codeForStatus(fe.Code)
		resp.Message = fe.Message
	case errors.As(err, &he):
		resp.Message = he.Message
		resp.Details = he.Details
	default:
		// Internal errors are logged, not echoed
		resp.Message = "internal server error"
	}

	return c.Status(status).JSON(fiber.Map{"error": resp})
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return hrflow.ErrCodeValidation
	case fiber.StatusNotFound:
		return hrflow.ErrCodeNotFound
	case fiber.StatusConflict:
		return hrflow.ErrCodeConflict
	default:
		return hrflow.ErrCodeInternalError
	}
}

func badRequest(message string) error {
	return fiber.NewError(fiber.StatusBadRequest, message)
}
