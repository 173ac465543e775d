package models

import "time"

// StepStatus represents the lifecycle state of one step execution.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusSkipped    StepStatus = "skipped"
)

// StepExecution is the runtime record of one step within one run. Top-level
// steps get one row at run start; branch paths produce additional rows
// scoped to the active path when the branch is entered.
//
// Invariant: at most one of AssignedToContactID / AssignedToUserID is set.
type StepExecution struct {
	ID                  string     `json:"id"`
	FlowRunID           string     `json:"flow_run_id" validate:"required"`
	StepID              string     `json:"step_id"     validate:"required"`
	StepIndex           int        `json:"step_index"`
	Path                string     `json:"path,omitempty"` // "" for top-level, "{branch step id}/{path name}" inside a branch
	Status              StepStatus `json:"status"      validate:"required"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	AssignedToContactID *string    `json:"assigned_to_contact_id,omitempty"`
	AssignedToUserID    *string    `json:"assigned_to_user_id,omitempty"`
	Outcome             *string    `json:"outcome,omitempty"` // chosen outcome / path selection payload
	VisitCount          int        `json:"visit_count"`       // goto re-entries, 0 on first activation
}

// IsResolved reports whether the execution reached a final state.
func (e *StepExecution) IsResolved() bool {
	return e.Status == StepStatusCompleted || e.Status == StepStatusSkipped
}

// Assigned reports whether the execution has any assignee.
func (e *StepExecution) Assigned() bool {
	return e.AssignedToContactID != nil || e.AssignedToUserID != nil
}
