// Package audit provides best-effort action logging for flow runs.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/flowdesk/pkg/eventbus"
	"github.com/dukex/flowdesk/pkg/events"
	"github.com/dukex/flowdesk/pkg/models"
)

// Logger appends audit records without blocking the request path. Records
// are published to the event bus; the worker persists them. A publish
// failure is logged and dropped, never surfaced to the caller.
type Logger struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	generate  func() string
}

// NewLogger creates an audit logger backed by the event bus.
func NewLogger(bus eventbus.EventBus, logger *slog.Logger) *Logger {
	return &Logger{
		publisher: bus,
		logger:    logger.With("module", "audit"),
		generate:  bus.GenerateID,
	}
}

// Log records one action for a run. Fire and forget.
func (l *Logger) Log(ctx context.Context, flowRunID string, action models.AuditAction, details map[string]any) {
	event := events.AuditRecorded{
		BaseEvent: events.BaseEvent{
			ID:        l.generate(),
			Type:      events.AuditRecordedEvent,
			Timestamp: time.Now().UTC(),
			FlowRunID: flowRunID,
		},
		Action:  action,
		Details: details,
	}

	go func() {
		// Detached from the request context so an aborted request does
		// not lose the record.
		err := l.publisher.Publish(context.WithoutCancel(ctx), flowRunID, event)
		if err != nil {
			l.logger.Error("failed to publish audit record",
				"flow_run_id", flowRunID, "action", action, "error", err)
		}
	}()
}
