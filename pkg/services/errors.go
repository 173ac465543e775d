// Package services implements the application operations behind the HTTP
// surface: flow management, run start and progression, and bootstrap
// seeding.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/flowdesk/pkg/flowrun"
	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence"
)

// Business logic errors. Validation maps to 400, not-found to 404 and
// conflicts to 409 at the HTTP layer.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrFlowNameRequired   = errors.New("flow name is required")
	ErrFlowNil            = errors.New("flow cannot be nil")
	ErrKickoffDataInvalid = errors.New("kickoff data does not match the flow's kickoff fields")

	ErrCannotModifyPublished = errors.New("cannot modify a published flow")
	ErrAlreadyPublished      = errors.New("flow is already published")
)

// Error codes used in webhook error envelopes.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeValidationError = "VALIDATION_ERROR"
	CodeConflict        = "CONFLICT"
	CodeInternalError   = "INTERNAL_ERROR"
)

// ServiceError wraps service-level errors with operation context and an API
// error code.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error should return HTTP 400.
func IsValidationError(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Code == CodeValidationError {
		return true
	}

	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFlowNameRequired) ||
		errors.Is(err, ErrFlowNil) ||
		errors.Is(err, ErrKickoffDataInvalid) ||
		errors.Is(err, models.ErrNoSteps) ||
		errors.Is(err, flowrun.ErrOutcomeRequired) ||
		errors.Is(err, flowrun.ErrUnknownOutcome) ||
		errors.Is(err, flowrun.ErrUnknownPath) ||
		errors.Is(err, flowrun.ErrTooFewPaths)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsFlowNotFound(err) ||
		persistence.IsRunNotFound(err) ||
		persistence.IsStepExecutionNotFound(err) ||
		errors.Is(err, persistence.ErrContactNotFound) ||
		errors.Is(err, persistence.ErrUserNotFound) ||
		errors.Is(err, persistence.ErrOrganizationNotFound)
}

// IsConflictError checks if an error should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyPublished) ||
		errors.Is(err, ErrAlreadyPublished) ||
		errors.Is(err, flowrun.ErrRunNotActive) ||
		errors.Is(err, flowrun.ErrStepNotActive) ||
		errors.Is(err, flowrun.ErrStepNotCompletable) ||
		errors.Is(err, flowrun.ErrGotoLimit)
}

// ErrorCode maps a service error to its webhook envelope code.
func ErrorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Code != "" {
		return serviceErr.Code
	}

	switch {
	case IsNotFoundError(err):
		return CodeNotFound
	case IsValidationError(err):
		return CodeValidationError
	case IsConflictError(err):
		return CodeConflict
	default:
		return CodeInternalError
	}
}
