package models

import (
	"errors"
	"time"
)

// ScheduleKind distinguishes due-date notification registrations.
type ScheduleKind string

const (
	ScheduleKindReminder   ScheduleKind = "reminder"   // before the step is due, to the assignee
	ScheduleKindEscalation ScheduleKind = "escalation" // after the step is due, to the coordinator
)

// Schedule is one registered notification intent with a precomputed
// absolute fire time. No in-process timer runs for it; the scheduler
// process polls for due entries and fires them.
type Schedule struct {
	ID              string       `json:"id"                validate:"required"`
	FlowRunID       string       `json:"flow_run_id"       validate:"required"`
	StepExecutionID string       `json:"step_execution_id" validate:"required"`
	Kind            ScheduleKind `json:"kind"              validate:"required,oneof=reminder escalation"`
	DueAt           time.Time    `json:"due_at"`  // the step's own due time
	FireAt          time.Time    `json:"fire_at"` // when the notification should go out
	CreatedAt       time.Time    `json:"created_at"`
	FiredAt         *time.Time   `json:"fired_at,omitempty"`
	Active          bool         `json:"active"`
}

// ErrInvalidSchedule is returned when schedule validation fails.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// Validate performs validation on the schedule fields.
func (s *Schedule) Validate() error {
	if s.ID == "" || s.FlowRunID == "" || s.StepExecutionID == "" {
		return ErrInvalidSchedule
	}

	if s.Kind != ScheduleKindReminder && s.Kind != ScheduleKindEscalation {
		return ErrInvalidSchedule
	}

	if s.FireAt.IsZero() {
		return ErrInvalidSchedule
	}

	return nil
}

// IsDue checks if this schedule should fire at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Active && s.FiredAt == nil && !s.FireAt.After(now)
}
