// Package notify handles magic links and due-date notification
// registration for activated steps.
package notify

import "context"

// MagicLinkEmail is the payload handed to the delivery collaborator when a
// step is assigned.
type MagicLinkEmail struct {
	To          string `json:"to"`
	ContactName string `json:"contact_name"`
	StepName    string `json:"step_name"`
	FlowName    string `json:"flow_name"`
	Token       string `json:"token"`
}

// ReminderEmail is the payload for due-date reminder and escalation mail.
type ReminderEmail struct {
	To         string `json:"to"`
	StepName   string `json:"step_name"`
	FlowName   string `json:"flow_name"`
	DueAt      string `json:"due_at"`
	Escalation bool   `json:"escalation"`
}

// Notifier is the external email/delivery collaborator.
type Notifier interface {
	SendMagicLink(ctx context.Context, email MagicLinkEmail) error
	SendReminder(ctx context.Context, email ReminderEmail) error
}
