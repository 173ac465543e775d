package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence"
)

// RunRepository handles flow run and step execution database operations.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

const runColumns = `
	id
  , flow_id
  , name
  , status
  , current_step_index
  , started_by
  , organization_id
  , role_assignments
  , kickoff_data
  , callback_url
  , started_at
  , completed_at
  , last_activity_at
`

const stepExecutionColumns = `
	id
  , flow_run_id
  , step_id
  , step_index
  , path
  , status
  , started_at
  , completed_at
  , assigned_to_contact_id
  , assigned_to_user_id
  , outcome
  , visit_count
`

// CreateRun inserts a run and its initial step executions inside one
// transaction so they appear together or not at all.
func (r *RunRepository) CreateRun(ctx context.Context, run *models.FlowRun, steps []*models.StepExecution) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = r.insertRun(ctx, tx, run)
	if err != nil {
		return persistence.NewRunError("CreateRun", run.ID, err)
	}

	for _, step := range steps {
		err = insertStepExecution(ctx, tx, step)
		if err != nil {
			return persistence.NewRunError("CreateRun", run.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit run creation: %w", err)
	}

	return nil
}

func (r *RunRepository) insertRun(ctx context.Context, tx *sql.Tx, run *models.FlowRun) error {
	roleAssignmentsJSON, err := json.Marshal(run.RoleAssignments)
	if err != nil {
		return fmt.Errorf("failed to marshal role assignments: %w", err)
	}

	kickoffJSON, err := json.Marshal(run.KickoffData)
	if err != nil {
		return fmt.Errorf("failed to marshal kickoff data: %w", err)
	}

	query := `
		INSERT INTO flow_runs (id, flow_id, name, status, current_step_index,
started_by, organization_id, role_assignments, kickoff_data, callback_url,
started_at, completed_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.FlowID,
		run.Name,
		run.Status,
		run.CurrentStepIndex,
		nullString(run.StartedBy),
		nullString(run.OrganizationID),
		roleAssignmentsJSON,
		kickoffJSON,
		nullString(run.CallbackURL),
		run.StartedAt,
		run.CompletedAt,
		run.LastActivityAt,
	)

	return err
}

// RunByID returns a run by its ID.
func (r *RunRepository) RunByID(ctx context.Context, id string) (*models.FlowRun, error) {
	query := `SELECT ` + runColumns + ` FROM flow_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound)
		}

		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	return run, nil
}

// RunsByFlow returns all runs of a flow, newest first.
func (r *RunRepository) RunsByFlow(ctx context.Context, flowID string) ([]*models.FlowRun, error) {
	query := `SELECT ` + runColumns + `
		FROM flow_runs
		WHERE flow_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	runs := make([]*models.FlowRun, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// UpdateRun persists run state changes.
func (r *RunRepository) UpdateRun(ctx context.Context, run *models.FlowRun) error {
	query := `
		UPDATE flow_runs SET
			name = $2,
			status = $3,
			current_step_index = $4,
			completed_at = $5,
			last_activity_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Name,
		run.Status,
		run.CurrentStepIndex,
		run.CompletedAt,
		run.LastActivityAt,
	)
	if err != nil {
		return persistence.NewRunError("UpdateRun", run.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return persistence.NewRunError("UpdateRun", run.ID, persistence.ErrRunNotFound)
	}

	return nil
}

// TouchRunActivity bumps the run's activity timestamp.
func (r *RunRepository) TouchRunActivity(ctx context.Context, runID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE flow_runs SET last_activity_at = $2 WHERE id = $1`, runID, at)
	if err != nil {
		return persistence.NewRunError("TouchRunActivity", runID, err)
	}

	return nil
}

// StepExecutions returns the run's step executions in activation order.
func (r *RunRepository) StepExecutions(ctx context.Context, runID string) ([]*models.StepExecution, error) {
	query := `SELECT ` + stepExecutionColumns + `
		FROM step_executions
		WHERE flow_run_id = $1
		ORDER BY path, step_index
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.StepExecution, 0)

	for rows.Next() {
		execution, err := scanStepExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating step executions: %w", err)
	}

	return executions, nil
}

// StepExecutionByID returns one step execution.
func (r *RunRepository) StepExecutionByID(ctx context.Context, id string) (*models.StepExecution, error) {
	query := `SELECT ` + stepExecutionColumns + ` FROM step_executions WHERE id = $1`

	execution, err := scanStepExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStepExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan step execution: %w", err)
	}

	return execution, nil
}

// SaveStepExecution upserts one step execution.
func (r *RunRepository) SaveStepExecution(ctx context.Context, execution *models.StepExecution) error {
	return saveStepExecution(ctx, r.db, execution)
}

// CreateStepExecutions inserts path-scoped executions created on branch
// entry, atomically.
func (r *RunRepository) CreateStepExecutions(ctx context.Context, executions []*models.StepExecution) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, execution := range executions {
		err = insertStepExecution(ctx, tx, execution)
		if err != nil {
			return fmt.Errorf("failed to insert step execution %s: %w", execution.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit step executions: %w", err)
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertStepExecution(ctx context.Context, db execer, execution *models.StepExecution) error {
	query := `
		INSERT INTO step_executions (id, flow_run_id, step_id, step_index, path,
status, started_at, completed_at, assigned_to_contact_id, assigned_to_user_id,
outcome, visit_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := db.ExecContext(ctx, query,
		execution.ID,
		execution.FlowRunID,
		execution.StepID,
		execution.StepIndex,
		execution.Path,
		execution.Status,
		execution.StartedAt,
		execution.CompletedAt,
		execution.AssignedToContactID,
		execution.AssignedToUserID,
		execution.Outcome,
		execution.VisitCount,
	)

	return err
}

func saveStepExecution(ctx context.Context, db execer, execution *models.StepExecution) error {
	query := `
		INSERT INTO step_executions (id, flow_run_id, step_id, step_index, path,
status, started_at, completed_at, assigned_to_contact_id, assigned_to_user_id,
outcome, visit_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			assigned_to_contact_id = EXCLUDED.assigned_to_contact_id,
			assigned_to_user_id = EXCLUDED.assigned_to_user_id,
			outcome = EXCLUDED.outcome,
			visit_count = EXCLUDED.visit_count
	`

	_, err := db.ExecContext(ctx, query,
		execution.ID,
		execution.FlowRunID,
		execution.StepID,
		execution.StepIndex,
		execution.Path,
		execution.Status,
		execution.StartedAt,
		execution.CompletedAt,
		execution.AssignedToContactID,
		execution.AssignedToUserID,
		execution.Outcome,
		execution.VisitCount,
	)

	return err
}

func scanRun(row rowScanner) (*models.FlowRun, error) {
	var (
		run                 models.FlowRun
		startedBy           sql.NullString
		organizationID      sql.NullString
		callbackURL         sql.NullString
		roleAssignmentsJSON []byte
		kickoffJSON         []byte
	)

	err := row.Scan(
		&run.ID,
		&run.FlowID,
		&run.Name,
		&run.Status,
		&run.CurrentStepIndex,
		&startedBy,
		&organizationID,
		&roleAssignmentsJSON,
		&kickoffJSON,
		&callbackURL,
		&run.StartedAt,
		&run.CompletedAt,
		&run.LastActivityAt,
	)
	if err != nil {
		return nil, err
	}

	run.StartedBy = startedBy.String
	run.OrganizationID = organizationID.String
	run.CallbackURL = callbackURL.String

	if len(roleAssignmentsJSON) > 0 {
		if err := json.Unmarshal(roleAssignmentsJSON, &run.RoleAssignments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal role assignments: %w", err)
		}
	}

	if len(kickoffJSON) > 0 {
		if err := json.Unmarshal(kickoffJSON, &run.KickoffData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal kickoff data: %w", err)
		}
	}

	return &run, nil
}

func scanStepExecution(row rowScanner) (*models.StepExecution, error) {
	var execution models.StepExecution

	err := row.Scan(
		&execution.ID,
		&execution.FlowRunID,
		&execution.StepID,
		&execution.StepIndex,
		&execution.Path,
		&execution.Status,
		&execution.StartedAt,
		&execution.CompletedAt,
		&execution.AssignedToContactID,
		&execution.AssignedToUserID,
		&execution.Outcome,
		&execution.VisitCount,
	)
	if err != nil {
		return nil, err
	}

	return &execution, nil
}
