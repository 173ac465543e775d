package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowdesk/pkg/eventbus"
	"github.com/dukex/flowdesk/pkg/events"
	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence/file"
)

type capturingBus struct {
	published []eventbus.Event
	fail      bool
}

func (b *capturingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	if b.fail {
		return assert.AnError
	}

	b.published = append(b.published, event)

	return nil
}

func (b *capturingBus) Handle(_ events.EventType, _ eventbus.EventHandler) error { return nil }
func (b *capturingBus) Subscribe(_ context.Context) error                        { return nil }
func (b *capturingBus) Close() error                                             { return nil }
func (b *capturingBus) GenerateID() string                                       { return uuid.NewString() }

func saveSchedule(t *testing.T, p *file.Persistence, kind models.ScheduleKind, fireAt time.Time) *models.Schedule {
	t.Helper()

	schedule := &models.Schedule{
		ID:              uuid.NewString(),
		FlowRunID:       "run-1",
		StepExecutionID: "exec-1",
		Kind:            kind,
		DueAt:           fireAt.Add(24 * time.Hour),
		FireAt:          fireAt,
		CreatedAt:       time.Now().UTC(),
		Active:          true,
	}
	require.NoError(t, p.ScheduleRepository().Save(context.Background(), schedule))

	return schedule
}

func TestPollPublishesDueSchedules(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	bus := &capturingBus{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	poller := NewPoller(p.ScheduleRepository(), bus, logger)
	ctx := context.Background()

	now := time.Now().UTC()
	saveSchedule(t, p, models.ScheduleKindReminder, now.Add(-time.Minute))
	saveSchedule(t, p, models.ScheduleKindEscalation, now.Add(-time.Minute))
	saveSchedule(t, p, models.ScheduleKindReminder, now.Add(time.Hour))

	require.NoError(t, poller.Poll(ctx))
	require.Len(t, bus.published, 2)

	kinds := map[events.EventType]bool{}
	for _, event := range bus.published {
		kinds[event.GetType()] = true
	}

	assert.True(t, kinds[events.StepReminderDueEvent])
	assert.True(t, kinds[events.StepEscalationDueEvent])

	// fired schedules do not come back
	require.NoError(t, poller.Poll(ctx))
	assert.Len(t, bus.published, 2)

	// the future one is still pending
	due, err := p.ScheduleRepository().DueSchedules(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestPollKeepsUnpublishedSchedules(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	bus := &capturingBus{fail: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	poller := NewPoller(p.ScheduleRepository(), bus, logger)
	ctx := context.Background()

	now := time.Now().UTC()
	saveSchedule(t, p, models.ScheduleKindReminder, now.Add(-time.Minute))

	require.NoError(t, poller.Poll(ctx))

	// publish failed, the schedule stays due for the next cycle
	due, err := p.ScheduleRepository().DueSchedules(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}
