package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence"
	"github.com/google/uuid"
)

// DueScheduler registers due-date reminder and escalation intents for
// activated steps. It implements no timers; the scheduler process polls
// the registrations and fires them.
type DueScheduler struct {
	schedules persistence.ScheduleRepository
}

// NewDueScheduler creates a due scheduler over the schedule repository.
func NewDueScheduler(schedules persistence.ScheduleRepository) *DueScheduler {
	return &DueScheduler{schedules: schedules}
}

// OnStepActivated computes the step's due time and registers its reminder
// and escalation entries. Steps without a due config register nothing.
// Returns the due time when one exists.
func (s *DueScheduler) OnStepActivated(
	ctx context.Context,
	definition *models.FlowDefinition,
	step *models.Step,
	execution *models.StepExecution,
) (*time.Time, error) {
	if step.Due == nil || execution.StartedAt == nil {
		return nil, nil
	}

	dueAt := execution.StartedAt.Add(step.Due.Duration())
	policy := definition.EffectiveReminders(step)

	reminder := &models.Schedule{
		FlowRunID:       execution.FlowRunID,
		StepExecutionID: execution.ID,
		Kind:            models.ScheduleKindReminder,
		DueAt:           dueAt,
		FireAt:          dueAt.Add(-time.Duration(policy.ReminderLeadHours) * time.Hour),
		Active:          true,
	}

	escalation := &models.Schedule{
		FlowRunID:       execution.FlowRunID,
		StepExecutionID: execution.ID,
		Kind:            models.ScheduleKindEscalation,
		DueAt:           dueAt,
		FireAt:          dueAt.Add(time.Duration(policy.EscalationLagHours) * time.Hour),
		Active:          true,
	}

	for _, schedule := range []*models.Schedule{reminder, escalation} {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate schedule ID: %w", err)
		}

		schedule.ID = id.String()

		if err := s.schedules.Save(ctx, schedule); err != nil {
			return nil, fmt.Errorf("failed to register %s schedule: %w", schedule.Kind, err)
		}
	}

	return &dueAt, nil
}

// OnStepResolved cancels pending notifications for a completed or skipped
// step execution.
func (s *DueScheduler) OnStepResolved(ctx context.Context, stepExecutionID string) error {
	return s.schedules.DeactivateByStepExecution(ctx, stepExecutionID)
}
