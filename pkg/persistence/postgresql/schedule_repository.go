package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukex/flowdesk/pkg/models"
)

// ScheduleRepository stores due-date notification registrations.
type ScheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Save upserts a schedule entry.
func (r *ScheduleRepository) Save(ctx context.Context, schedule *models.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedules (id, flow_run_id, step_execution_id, kind,
due_at, fire_at, created_at, fired_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			fire_at = EXCLUDED.fire_at,
			fired_at = EXCLUDED.fired_at,
			active = EXCLUDED.active
	`, schedule.ID, schedule.FlowRunID, schedule.StepExecutionID, schedule.Kind,
		schedule.DueAt, schedule.FireAt, schedule.CreatedAt, schedule.FiredAt, schedule.Active)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	return nil
}

// DueSchedules returns active, unfired schedules whose fire time has
// passed, oldest first.
func (r *ScheduleRepository) DueSchedules(ctx context.Context, now time.Time, limit int) ([]*models.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, flow_run_id, step_execution_id, kind, due_at, fire_at, created_at, fired_at, active
		FROM schedules
		WHERE active AND fired_at IS NULL AND fire_at <= $1
		ORDER BY fire_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}

	defer func() { _ = rows.Close() }()

	schedules := make([]*models.Schedule, 0)

	for rows.Next() {
		var schedule models.Schedule

		err := rows.Scan(
			&schedule.ID,
			&schedule.FlowRunID,
			&schedule.StepExecutionID,
			&schedule.Kind,
			&schedule.DueAt,
			&schedule.FireAt,
			&schedule.CreatedAt,
			&schedule.FiredAt,
			&schedule.Active,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		schedules = append(schedules, &schedule)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return schedules, nil
}

// MarkFired records that a schedule fired.
func (r *ScheduleRepository) MarkFired(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE schedules SET fired_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark schedule fired: %w", err)
	}

	return nil
}

// DeactivateByStepExecution cancels pending notifications for a resolved
// step execution.
func (r *ScheduleRepository) DeactivateByStepExecution(ctx context.Context, stepExecutionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE schedules SET active = false WHERE step_execution_id = $1 AND fired_at IS NULL`,
		stepExecutionID)
	if err != nil {
		return fmt.Errorf("failed to deactivate schedules: %w", err)
	}

	return nil
}
