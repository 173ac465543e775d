package models

import "time"

// AuditAction enumerates recorded run activity.
type AuditAction string

const (
	AuditFlowRunStarted     AuditAction = "FLOW_RUN_STARTED"
	AuditWebhookFlowStarted AuditAction = "WEBHOOK_FLOW_STARTED"
	AuditStepActivated      AuditAction = "STEP_ACTIVATED"
	AuditStepCompleted      AuditAction = "STEP_COMPLETED"
	AuditStepSkipped        AuditAction = "STEP_SKIPPED"
	AuditFlowRunCompleted   AuditAction = "FLOW_RUN_COMPLETED"
	AuditFlowRunCancelled   AuditAction = "FLOW_RUN_CANCELLED"
	AuditReminderSent       AuditAction = "REMINDER_SENT"
	AuditEscalationSent     AuditAction = "ESCALATION_SENT"
)

// AuditEntry is one appended action record, keyed by run. Best effort,
// non-blocking to the request path.
type AuditEntry struct {
	ID        string         `json:"id"`
	FlowRunID string         `json:"flow_run_id" validate:"required"`
	Action    AuditAction    `json:"action"      validate:"required"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
