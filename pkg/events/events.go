// Package events defines event types and structures for run lifecycle
// notifications.
package events

import (
	"time"

	"github.com/dukex/flowdesk/pkg/models"
)

type EventType string

// Topic carries all run lifecycle and audit events.
const Topic = "flowdesk.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent   EventType = "run.started"
	RunCompletedEvent EventType = "run.completed"
	RunCancelledEvent EventType = "run.cancelled"

	// Step lifecycle events.
	StepActivatedEvent EventType = "step.activated"
	StepCompletedEvent EventType = "step.completed"
	StepSkippedEvent   EventType = "step.skipped"

	// Due-date notification events, published by the scheduler process.
	StepReminderDueEvent   EventType = "step.reminder.due"
	StepEscalationDueEvent EventType = "step.escalation.due"

	// Audit stream.
	AuditRecordedEvent EventType = "audit.recorded"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FlowRunID string         `json:"flow_run_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RunStarted is published after a run and its step executions are created.
type RunStarted struct {
	BaseEvent

	FlowID      string         `json:"flow_id"`
	FlowName    string         `json:"flow_name"`
	RunName     string         `json:"run_name"`
	StartedBy   string         `json:"started_by"`
	CallbackURL string         `json:"callback_url,omitempty"`
	KickoffData map[string]any `json:"kickoff_data,omitempty"`
	StepCount   int            `json:"step_count"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunCompleted struct {
	BaseEvent

	FlowID   string        `json:"flow_id"`
	Duration time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunCancelled struct {
	BaseEvent

	FlowID string `json:"flow_id"`
	Reason string `json:"reason,omitempty"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

type StepActivated struct {
	BaseEvent

	StepExecutionID     string     `json:"step_execution_id"`
	StepID              string     `json:"step_id"`
	StepName            string     `json:"step_name"`
	AssignedToContactID *string    `json:"assigned_to_contact_id,omitempty"`
	AssignedToUserID    *string    `json:"assigned_to_user_id,omitempty"`
	DueAt               *time.Time `json:"due_at,omitempty"`
}

func (e StepActivated) GetType() EventType {
	return StepActivatedEvent
}

type StepCompleted struct {
	BaseEvent

	StepExecutionID string  `json:"step_execution_id"`
	StepID          string  `json:"step_id"`
	Outcome         *string `json:"outcome,omitempty"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type StepSkipped struct {
	BaseEvent

	StepExecutionID string `json:"step_execution_id"`
	StepID          string `json:"step_id"`
}

func (e StepSkipped) GetType() EventType {
	return StepSkippedEvent
}

type StepReminderDue struct {
	BaseEvent

	StepExecutionID string    `json:"step_execution_id"`
	DueAt           time.Time `json:"due_at"`
}

func (e StepReminderDue) GetType() EventType {
	return StepReminderDueEvent
}

type StepEscalationDue struct {
	BaseEvent

	StepExecutionID string    `json:"step_execution_id"`
	DueAt           time.Time `json:"due_at"`
}

func (e StepEscalationDue) GetType() EventType {
	return StepEscalationDueEvent
}

// AuditRecorded carries a best-effort audit entry to the worker that
// persists it.
type AuditRecorded struct {
	BaseEvent

	Action  models.AuditAction `json:"action"`
	Details map[string]any     `json:"details,omitempty"`
}

func (e AuditRecorded) GetType() EventType {
	return AuditRecordedEvent
}
