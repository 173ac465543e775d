package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/flowdesk/pkg/eventbus"
	"github.com/dukex/flowdesk/pkg/events"
	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence"
)

// DefaultPollBatch bounds how many due schedules one poll cycle drains.
const DefaultPollBatch = 100

// Poller turns due schedule rows into reminder and escalation events. It
// owns no timers; the caller decides the cadence.
type Poller struct {
	schedules persistence.ScheduleRepository
	bus       eventbus.EventBus
	logger    *slog.Logger
	batch     int
	now       func() time.Time
}

// NewPoller creates a poller over the schedule repository.
func NewPoller(schedules persistence.ScheduleRepository, bus eventbus.EventBus, logger *slog.Logger) *Poller {
	return &Poller{
		schedules: schedules,
		bus:       bus,
		logger:    logger.With("module", "notify"),
		batch:     DefaultPollBatch,
		now:       time.Now,
	}
}

// Poll publishes an event for every schedule whose fire time has passed and
// marks it fired. A schedule that fails to publish stays unfired and is
// retried next cycle.
func (p *Poller) Poll(ctx context.Context) error {
	now := p.now().UTC()

	due, err := p.schedules.DueSchedules(ctx, now, p.batch)
	if err != nil {
		return err
	}

	for _, schedule := range due {
		event := p.eventFor(schedule)

		if err := p.bus.Publish(ctx, schedule.FlowRunID, event); err != nil {
			p.logger.WarnContext(ctx, "Failed to publish due schedule", "schedule_id", schedule.ID, "error", err)

			continue
		}

		if err := p.schedules.MarkFired(ctx, schedule.ID, now); err != nil {
			p.logger.WarnContext(ctx, "Failed to mark schedule fired", "schedule_id", schedule.ID, "error", err)
		}
	}

	return nil
}

func (p *Poller) eventFor(schedule *models.Schedule) eventbus.Event {
	base := events.BaseEvent{
		ID:        p.bus.GenerateID(),
		Timestamp: p.now().UTC(),
		FlowRunID: schedule.FlowRunID,
	}

	if schedule.Kind == models.ScheduleKindEscalation {
		base.Type = events.StepEscalationDueEvent

		return events.StepEscalationDue{
			BaseEvent:       base,
			StepExecutionID: schedule.StepExecutionID,
			DueAt:           schedule.DueAt,
		}
	}

	base.Type = events.StepReminderDueEvent

	return events.StepReminderDue{
		BaseEvent:       base,
		StepExecutionID: schedule.StepExecutionID,
		DueAt:           schedule.DueAt,
	}
}
