package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence"
)

const schedulesCollection = "schedules"

// ScheduleRepository stores notification schedules as JSON files.
type ScheduleRepository struct {
	root string
}

func (r *ScheduleRepository) Save(ctx context.Context, schedule *models.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}

	return writeDocument(r.root, schedulesCollection, schedule.ID, schedule)
}

func (r *ScheduleRepository) DueSchedules(ctx context.Context, now time.Time, limit int) ([]*models.Schedule, error) {
	due := make([]*models.Schedule, 0)

	err := readCollection(r.root, schedulesCollection, func(data []byte) error {
		var schedule models.Schedule
		if err := json.Unmarshal(data, &schedule); err != nil {
			return fmt.Errorf("failed to unmarshal schedule: %w", err)
		}

		if schedule.IsDue(now) {
			due = append(due, &schedule)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].FireAt.Before(due[j].FireAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (r *ScheduleRepository) MarkFired(ctx context.Context, id string, at time.Time) error {
	var schedule models.Schedule

	err := readDocument(r.root, schedulesCollection, id, &schedule, persistence.ErrScheduleNotFound)
	if err != nil {
		return err
	}

	schedule.FiredAt = &at

	return writeDocument(r.root, schedulesCollection, schedule.ID, &schedule)
}

func (r *ScheduleRepository) DeactivateByStepExecution(ctx context.Context, stepExecutionID string) error {
	var updateErr error

	err := readCollection(r.root, schedulesCollection, func(data []byte) error {
		var schedule models.Schedule
		if err := json.Unmarshal(data, &schedule); err != nil {
			return fmt.Errorf("failed to unmarshal schedule: %w", err)
		}

		if schedule.StepExecutionID == stepExecutionID && schedule.FiredAt == nil && schedule.Active {
			schedule.Active = false

			if err := writeDocument(r.root, schedulesCollection, schedule.ID, &schedule); err != nil {
				updateErr = err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	return updateErr
}
