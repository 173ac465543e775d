// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrRunNotFound indicates a flow run was not found by the given identifier.
	ErrRunNotFound = errors.New("flow run not found")

	// ErrStepExecutionNotFound indicates a step execution was not found.
	ErrStepExecutionNotFound = errors.New("step execution not found")

	// ErrOrganizationNotFound indicates an organization was not found.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrUserNotFound indicates a user was not found.
	ErrUserNotFound = errors.New("user not found")

	// ErrContactNotFound indicates a contact was not found.
	ErrContactNotFound = errors.New("contact not found")

	// ErrScheduleNotFound indicates a schedule entry was not found.
	ErrScheduleNotFound = errors.New("schedule not found")
)

// FlowError wraps flow-related errors with additional context.
type FlowError struct {
	Op     string // Operation being performed (e.g., "FlowByID", "Save", "Delete")
	FlowID string // Flow ID if applicable
	Err    error  // Underlying error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a new flow error with context.
func NewFlowError(op, flowID string, err error) *FlowError {
	return &FlowError{Op: op, FlowID: flowID, Err: err}
}

// RunError wraps run-related errors with additional context.
type RunError struct {
	Op    string // Operation being performed
	RunID string // Flow run ID
	Err   error  // Underlying error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRunError creates a new run error with context.
func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsRunNotFound checks if an error indicates a flow run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsStepExecutionNotFound checks if an error indicates a step execution was not found.
func IsStepExecutionNotFound(err error) bool {
	return errors.Is(err, ErrStepExecutionNotFound)
}
