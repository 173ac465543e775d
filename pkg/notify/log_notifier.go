package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes outgoing email to the structured log instead of an
// SMTP server. Default for local and single-binary setups; deployments
// plug their own Notifier.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notify")}
}

func (n *LogNotifier) SendMagicLink(ctx context.Context, email MagicLinkEmail) error {
	n.logger.InfoContext(ctx, "Magic link email",
		"to", email.To,
		"step_name", email.StepName,
		"flow_name", email.FlowName,
		"token", email.Token,
	)

	return nil
}

func (n *LogNotifier) SendReminder(ctx context.Context, email ReminderEmail) error {
	n.logger.InfoContext(ctx, "Reminder email",
		"to", email.To,
		"step_name", email.StepName,
		"flow_name", email.FlowName,
		"due_at", email.DueAt,
		"escalation", email.Escalation,
	)

	return nil
}
