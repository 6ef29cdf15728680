package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Pipeline failures. Callers wrap them with context and match with errors.Is.
var (
	// ErrScoringUnavailable means the spam checker could not produce a verdict.
	ErrScoringUnavailable = errors.New("spam scoring unavailable")
	// ErrOptimizationFailed means the stored photo could not be rewritten.
	ErrOptimizationFailed = errors.New("photo optimization failed")
	// ErrPersistenceConflict means another worker changed the comment first.
	ErrPersistenceConflict = errors.New("comment was modified concurrently")
	// ErrIllegalTransition means the transition is not enabled from the current state.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrInvalidState means a state outside the enumerated set was about to be stored.
	ErrInvalidState = errors.New("invalid comment state")
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

// NewValidationError reports invalid client input.
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
	}
}

// NewConflictError reports a request that cannot apply to the current resource state.
func NewConflictError(message string, err error) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Err:     err,
	}
}

// NewInternalError hides err behind a generic message.
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
		Err:     err,
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil && appErr.Code != "INTERNAL_ERROR" {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
