package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dukex/flowdesk/pkg/channels/gochannel"
	"github.com/dukex/flowdesk/pkg/eventbus"
	"github.com/dukex/flowdesk/pkg/events"
	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/notify"
	"github.com/dukex/flowdesk/pkg/persistence"
	"github.com/dukex/flowdesk/pkg/persistence/file"
)

type reminderCapture struct {
	reminders []notify.ReminderEmail
}

func (c *reminderCapture) SendMagicLink(_ context.Context, _ notify.MagicLinkEmail) error {
	return nil
}

func (c *reminderCapture) SendReminder(_ context.Context, email notify.ReminderEmail) error {
	c.reminders = append(c.reminders, email)

	return nil
}

func newTestWorker(t *testing.T) (*Worker, persistence.Persistence, *reminderCapture) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &reminderCapture{}
	tracer := noop.NewTracerProvider().Tracer("test")

	return NewWorker(p, bus, notifier, tracer, logger), p, notifier
}

func seedRun(t *testing.T, p persistence.Persistence) (*models.Flow, *models.FlowRun, *models.StepExecution) {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()

	flow := &models.Flow{
		ID:     uuid.NewString(),
		Name:   "Client Onboarding",
		Status: models.FlowStatusPublished,
		Definition: &models.FlowDefinition{
			Steps: []*models.Step{
				{ID: "s1", Name: "Upload documents", Type: models.StepTypeForm},
			},
		},
	}
	require.NoError(t, p.FlowRepository().Save(ctx, flow))

	starter := &models.User{ID: uuid.NewString(), Email: "coordinator@example.com", Name: "Pat"}
	require.NoError(t, p.ActorRepository().SaveUser(ctx, starter))

	contact := &models.Contact{ID: uuid.NewString(), Email: "client@example.com", Name: "Client"}
	require.NoError(t, p.ActorRepository().SaveContact(ctx, contact))

	run := &models.FlowRun{
		ID:             uuid.NewString(),
		FlowID:         flow.ID,
		Name:           "Client Onboarding run",
		Status:         models.RunStatusInProgress,
		StartedBy:      starter.ID,
		StartedAt:      now,
		LastActivityAt: now,
	}
	execution := &models.StepExecution{
		ID:                  uuid.NewString(),
		FlowRunID:           run.ID,
		StepID:              "s1",
		Status:              models.StepStatusInProgress,
		StartedAt:           &now,
		AssignedToContactID: &contact.ID,
	}
	require.NoError(t, p.RunRepository().CreateRun(ctx, run, []*models.StepExecution{execution}))

	return flow, run, execution
}

func TestHandleAuditRecordedPersistsEntry(t *testing.T) {
	worker, p, _ := newTestWorker(t)
	ctx := context.Background()

	_, run, _ := seedRun(t, p)
	at := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	recorded := &events.AuditRecorded{
		BaseEvent: events.BaseEvent{
			ID:        uuid.NewString(),
			Type:      events.AuditRecordedEvent,
			Timestamp: at,
			FlowRunID: run.ID,
		},
		Action:  models.AuditStepActivated,
		Details: map[string]any{"step_id": "s1"},
	}
	require.NoError(t, worker.handleAuditRecorded(ctx, recorded))

	entries, err := p.AuditRepository().EntriesByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, recorded.ID, entries[0].ID)
	assert.Equal(t, models.AuditStepActivated, entries[0].Action)
	assert.Equal(t, "s1", entries[0].Details["step_id"])

	touched, err := p.RunRepository().RunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, touched.LastActivityAt.Equal(at))
}

func TestHandleRunStartedPostsCallback(t *testing.T) {
	worker, _, _ := newTestWorker(t)
	ctx := context.Background()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	started := &events.RunStarted{
		BaseEvent: events.BaseEvent{
			ID:        uuid.NewString(),
			Type:      events.RunStartedEvent,
			Timestamp: time.Now().UTC(),
			FlowRunID: uuid.NewString(),
		},
		FlowID:      uuid.NewString(),
		FlowName:    "Client Onboarding",
		CallbackURL: server.URL,
	}
	require.NoError(t, worker.handleRunStarted(ctx, started))
	assert.Equal(t, int32(1), calls.Load())
}

func TestHandleRunStartedWithoutCallbackURL(t *testing.T) {
	worker, _, _ := newTestWorker(t)

	started := &events.RunStarted{
		BaseEvent: events.BaseEvent{ID: uuid.NewString(), FlowRunID: uuid.NewString()},
	}
	require.NoError(t, worker.handleRunStarted(context.Background(), started))
}

func TestHandleRunStartedUnreachableCallback(t *testing.T) {
	worker, _, _ := newTestWorker(t)

	started := &events.RunStarted{
		BaseEvent:   events.BaseEvent{ID: uuid.NewString(), FlowRunID: uuid.NewString()},
		CallbackURL: "http://127.0.0.1:1/callback",
	}
	// delivery failures are logged, not surfaced
	require.NoError(t, worker.handleRunStarted(context.Background(), started))
}

func TestHandleReminderDueMailsAssignee(t *testing.T) {
	worker, p, notifier := newTestWorker(t)
	ctx := context.Background()

	_, run, execution := seedRun(t, p)
	dueAt := time.Now().UTC().Add(24 * time.Hour)

	due := &events.StepReminderDue{
		BaseEvent:       events.BaseEvent{ID: uuid.NewString(), FlowRunID: run.ID},
		StepExecutionID: execution.ID,
		DueAt:           dueAt,
	}
	require.NoError(t, worker.handleReminderDue(ctx, due))

	require.Len(t, notifier.reminders, 1)
	email := notifier.reminders[0]
	assert.Equal(t, "client@example.com", email.To)
	assert.Equal(t, "Upload documents", email.StepName)
	assert.Equal(t, "Client Onboarding", email.FlowName)
	assert.Equal(t, dueAt.Format(time.RFC3339), email.DueAt)
	assert.False(t, email.Escalation)

	entries, err := p.AuditRepository().EntriesByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditReminderSent, entries[0].Action)
}

func TestHandleEscalationDueMailsStarter(t *testing.T) {
	worker, p, notifier := newTestWorker(t)
	ctx := context.Background()

	_, run, execution := seedRun(t, p)

	due := &events.StepEscalationDue{
		BaseEvent:       events.BaseEvent{ID: uuid.NewString(), FlowRunID: run.ID},
		StepExecutionID: execution.ID,
		DueAt:           time.Now().UTC().Add(-48 * time.Hour),
	}
	require.NoError(t, worker.handleEscalationDue(ctx, due))

	require.Len(t, notifier.reminders, 1)
	assert.Equal(t, "coordinator@example.com", notifier.reminders[0].To)
	assert.True(t, notifier.reminders[0].Escalation)

	entries, err := p.AuditRepository().EntriesByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditEscalationSent, entries[0].Action)
}

func TestHandleReminderDueSkipsResolvedStep(t *testing.T) {
	worker, p, notifier := newTestWorker(t)
	ctx := context.Background()

	_, run, execution := seedRun(t, p)

	now := time.Now().UTC()
	execution.Status = models.StepStatusCompleted
	execution.CompletedAt = &now
	require.NoError(t, p.RunRepository().SaveStepExecution(ctx, execution))

	due := &events.StepReminderDue{
		BaseEvent:       events.BaseEvent{ID: uuid.NewString(), FlowRunID: run.ID},
		StepExecutionID: execution.ID,
		DueAt:           now,
	}
	require.NoError(t, worker.handleReminderDue(ctx, due))
	assert.Empty(t, notifier.reminders)
}
