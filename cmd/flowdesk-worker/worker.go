// Package main provides the flowdesk background worker: audit persistence,
// callback delivery and due-date email notifications.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/flowdesk/pkg/eventbus"
	"github.com/dukex/flowdesk/pkg/events"
	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/notify"
	"github.com/dukex/flowdesk/pkg/otelhelper"
	"github.com/dukex/flowdesk/pkg/persistence"
)

const callbackTimeout = 10 * time.Second

// Worker consumes run events: it persists audit entries, delivers run
// started callbacks and sends reminder and escalation email.
type Worker struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	notifier    notify.Notifier
	logger      *slog.Logger
	tracer      trace.Tracer
	httpClient  *http.Client
}

func NewWorker(
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	notifier notify.Notifier,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		persistence: p,
		eventBus:    eventBus,
		notifier:    notifier,
		tracer:      tracer,
		logger:      logger.With("module", "worker"),
		httpClient:  &http.Client{Timeout: callbackTimeout},
	}
}

// Start registers the event handlers and consumes until the context is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.AuditRecordedEvent:     w.handleAuditRecorded,
		events.RunStartedEvent:        w.handleRunStarted,
		events.StepReminderDueEvent:   w.handleReminderDue,
		events.StepEscalationDueEvent: w.handleEscalationDue,
	}

	for eventType, handler := range handlers {
		if err := w.eventBus.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	w.logger.InfoContext(ctx, "Worker consuming events")
	<-ctx.Done()
	w.logger.Info("Worker stopping")

	return nil
}

func (w *Worker) handleAuditRecorded(ctx context.Context, event any) error {
	recorded, ok := event.(*events.AuditRecorded)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	err := w.persistence.AuditRepository().Append(ctx, &models.AuditEntry{
		ID:        recorded.ID,
		FlowRunID: recorded.FlowRunID,
		Action:    recorded.Action,
		Details:   recorded.Details,
		CreatedAt: recorded.Timestamp,
	})
	if err != nil {
		return err
	}

	// every audited action counts as run activity
	err = w.persistence.RunRepository().TouchRunActivity(ctx, recorded.FlowRunID, recorded.Timestamp)
	if err != nil {
		w.logger.WarnContext(ctx, "Failed to bump run activity", "run_id", recorded.FlowRunID, "error", err)
	}

	return nil
}

// handleRunStarted posts the run started payload to the caller's callback
// URL. One attempt; failures are logged, never retried.
func (w *Worker) handleRunStarted(ctx context.Context, event any) error {
	started, ok := event.(*events.RunStarted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	if started.CallbackURL == "" {
		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.callback",
		attribute.String(otelhelper.RunIDKey, started.FlowRunID),
		attribute.String(otelhelper.FlowIDKey, started.FlowID),
	)
	defer span.End()

	payload, err := json.Marshal(started)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, started.CallbackURL, bytes.NewReader(payload))
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		otelhelper.SetError(span, err)
		w.logger.WarnContext(ctx, "Callback delivery failed", "run_id", started.FlowRunID, "error", err)

		return nil
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		w.logger.WarnContext(ctx, "Callback rejected", "run_id", started.FlowRunID, "status", resp.StatusCode)
	}

	return nil
}

func (w *Worker) handleReminderDue(ctx context.Context, event any) error {
	due, ok := event.(*events.StepReminderDue)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	return w.sendDueEmail(ctx, due.FlowRunID, due.StepExecutionID, due.DueAt, false)
}

func (w *Worker) handleEscalationDue(ctx context.Context, event any) error {
	due, ok := event.(*events.StepEscalationDue)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	return w.sendDueEmail(ctx, due.FlowRunID, due.StepExecutionID, due.DueAt, true)
}

// sendDueEmail mails the step assignee about an approaching due date, or
// the run coordinator once the step is overdue. Stale events for already
// resolved steps are dropped.
func (w *Worker) sendDueEmail(ctx context.Context, runID, stepExecutionID string, dueAt time.Time, escalation bool) error {
	runs := w.persistence.RunRepository()

	execution, err := runs.StepExecutionByID(ctx, stepExecutionID)
	if err != nil {
		return err
	}

	if execution.IsResolved() {
		return nil
	}

	run, err := runs.RunByID(ctx, runID)
	if err != nil {
		return err
	}

	flow, err := w.persistence.FlowRepository().FlowByID(ctx, run.FlowID)
	if err != nil {
		return err
	}

	stepName := execution.StepID
	if step := flow.Definition.FindStep(execution.StepID); step != nil {
		stepName = step.Name
	}

	to, err := w.recipient(ctx, execution, run, escalation)
	if err != nil {
		w.logger.WarnContext(ctx, "No recipient for due email", "step_execution_id", stepExecutionID, "error", err)

		return nil
	}

	email := notify.ReminderEmail{
		To:         to,
		StepName:   stepName,
		FlowName:   flow.Name,
		DueAt:      dueAt.Format(time.RFC3339),
		Escalation: escalation,
	}
	if err := w.notifier.SendReminder(ctx, email); err != nil {
		return fmt.Errorf("failed to send due email: %w", err)
	}

	action := models.AuditReminderSent
	if escalation {
		action = models.AuditEscalationSent
	}

	return w.persistence.AuditRepository().Append(ctx, &models.AuditEntry{
		ID:        w.eventBus.GenerateID(),
		FlowRunID: runID,
		Action:    action,
		Details: map[string]any{
			"step_execution_id": stepExecutionID,
			"to":                to,
		},
		CreatedAt: time.Now().UTC(),
	})
}

func (w *Worker) recipient(ctx context.Context, execution *models.StepExecution, run *models.FlowRun, escalation bool) (string, error) {
	actors := w.persistence.ActorRepository()

	if !escalation {
		if execution.AssignedToContactID != nil {
			contact, err := actors.ContactByID(ctx, *execution.AssignedToContactID)
			if err != nil {
				return "", err
			}

			return contact.Email, nil
		}

		if execution.AssignedToUserID != nil {
			user, err := actors.UserByID(ctx, *execution.AssignedToUserID)
			if err != nil {
				return "", err
			}

			return user.Email, nil
		}
	}

	// escalations, and unassigned steps, go to whoever started the run
	user, err := actors.UserByID(ctx, run.StartedBy)
	if err != nil {
		return "", err
	}

	return user.Email, nil
}
