package hrflow

import (
	"errors"
	"fmt"
)

// Error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeExecutionFailed = "EXECUTION_FAILED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// Sentinel errors returned at lookup boundaries
var (
	ErrKeyNotFound      = &Error{Code: ErrCodeNotFound, Message: "key not found"}
	ErrWorkflowNotFound = &Error{Code: ErrCodeNotFound, Message: "workflow not found"}
	ErrStepNotFound     = &Error{Code: ErrCodeNotFound, Message: "step not found"}
	ErrRequestNotFound  = &Error{Code: ErrCodeNotFound, Message: "hitl request not found"}
	ErrCompanyNotFound  = &Error{Code: ErrCodeNotFound, Message: "company not found"}
	ErrAgentNotFound    = &Error{Code: ErrCodeNotFound, Message: "agent not found"}

	ErrRequestNotPending = &Error{Code: ErrCodeConflict, Message: "hitl request is not pending"}
	ErrStepNotRetryable  = &Error{Code: ErrCodeConflict, Message: "step is not failed or waiting for approval"}
	ErrStepNotReady      = &Error{Code: ErrCodeConflict, Message: "step is not pending or its dependencies are not completed"}
)

// Error is a coded error surfaced by the core packages
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches errors that share code and message, so wrapped sentinels still compare equal
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError creates a new coded error
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause attaches an underlying error
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]any) *Error {
	c := *e
	c.Details = details
	return &c
}

// ValidationError creates a validation error with a formatted message
func ValidationError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the code carried by err, or INTERNAL_ERROR
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternalError
}

// IsNotFound checks if an error is any of the not-found errors
func IsNotFound(err error) bool {
	return ErrorCode(err) == ErrCodeNotFound
}
