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

const (
	runsCollection       = "flow_runs"
	executionsCollection = "step_executions"
)

// RunRepository stores flow runs and step executions as JSON files.
type RunRepository struct {
	root string
}

func (r *RunRepository) CreateRun(ctx context.Context, run *models.FlowRun, steps []*models.StepExecution) error {
	// Steps first so a readable run always has its steps; file storage
	// offers no real transaction.
	for _, step := range steps {
		if err := writeDocument(r.root, executionsCollection, step.ID, step); err != nil {
			return err
		}
	}

	return writeDocument(r.root, runsCollection, run.ID, run)
}

func (r *RunRepository) RunByID(ctx context.Context, id string) (*models.FlowRun, error) {
	var run models.FlowRun

	err := readDocument(r.root, runsCollection, id, &run,
		persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound))
	if err != nil {
		return nil, err
	}

	return &run, nil
}

func (r *RunRepository) RunsByFlow(ctx context.Context, flowID string) ([]*models.FlowRun, error) {
	runs := make([]*models.FlowRun, 0)

	err := readCollection(r.root, runsCollection, func(data []byte) error {
		var run models.FlowRun
		if err := json.Unmarshal(data, &run); err != nil {
			return fmt.Errorf("failed to unmarshal run: %w", err)
		}

		if run.FlowID == flowID {
			runs = append(runs, &run)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	return runs, nil
}

func (r *RunRepository) UpdateRun(ctx context.Context, run *models.FlowRun) error {
	_, err := r.RunByID(ctx, run.ID)
	if err != nil {
		return err
	}

	return writeDocument(r.root, runsCollection, run.ID, run)
}

func (r *RunRepository) TouchRunActivity(ctx context.Context, runID string, at time.Time) error {
	run, err := r.RunByID(ctx, runID)
	if err != nil {
		return err
	}

	run.LastActivityAt = at

	return writeDocument(r.root, runsCollection, run.ID, run)
}

func (r *RunRepository) StepExecutions(ctx context.Context, runID string) ([]*models.StepExecution, error) {
	executions := make([]*models.StepExecution, 0)

	err := readCollection(r.root, executionsCollection, func(data []byte) error {
		var execution models.StepExecution
		if err := json.Unmarshal(data, &execution); err != nil {
			return fmt.Errorf("failed to unmarshal step execution: %w", err)
		}

		if execution.FlowRunID == runID {
			executions = append(executions, &execution)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(executions, func(i, j int) bool {
		if executions[i].Path != executions[j].Path {
			return executions[i].Path < executions[j].Path
		}

		return executions[i].StepIndex < executions[j].StepIndex
	})

	return executions, nil
}

func (r *RunRepository) StepExecutionByID(ctx context.Context, id string) (*models.StepExecution, error) {
	var execution models.StepExecution

	err := readDocument(r.root, executionsCollection, id, &execution,
		persistence.ErrStepExecutionNotFound)
	if err != nil {
		return nil, err
	}

	return &execution, nil
}

func (r *RunRepository) SaveStepExecution(ctx context.Context, execution *models.StepExecution) error {
	return writeDocument(r.root, executionsCollection, execution.ID, execution)
}

func (r *RunRepository) CreateStepExecutions(ctx context.Context, executions []*models.StepExecution) error {
	for _, execution := range executions {
		if err := writeDocument(r.root, executionsCollection, execution.ID, execution); err != nil {
			return err
		}
	}

	return nil
}
