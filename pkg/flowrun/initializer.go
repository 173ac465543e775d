package flowrun

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/flowdesk/pkg/models"
)

// StartParams carries everything a caller supplies to start a run. Role
// assignments must already be resolved with ResolveRoles.
type StartParams struct {
	Name            string
	StartedBy       string
	OrganizationID  string
	RoleAssignments map[string]string
	KickoffData     map[string]any
	CallbackURL     string
}

// InitializedRun is a run plus the execution rows for its top-level steps,
// ready to be persisted in one transaction. Branch path steps get their rows
// later, when the engine enters the path.
type InitializedRun struct {
	Run   *models.FlowRun
	Steps []*models.StepExecution
}

// InitializeRun builds the run and one execution row per top-level step. The
// first step starts in progress immediately, the rest pending. Assignees are
// resolved for every row up front so pending steps already show who will own
// them.
func InitializeRun(flow *models.Flow, params StartParams, now time.Time) (*InitializedRun, error) {
	if len(flow.Definition.Steps) == 0 {
		return nil, models.ErrNoSteps
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	name := params.Name
	if name == "" {
		name = flow.Name + " run"
	}

	run := &models.FlowRun{
		ID:              runID.String(),
		FlowID:          flow.ID,
		Name:            name,
		Status:          models.RunStatusInProgress,
		StartedBy:       params.StartedBy,
		OrganizationID:  params.OrganizationID,
		RoleAssignments: params.RoleAssignments,
		KickoffData:     params.KickoffData,
		CallbackURL:     params.CallbackURL,
		StartedAt:       now,
		LastActivityAt:  now,
	}

	steps := make([]*models.StepExecution, 0, len(flow.Definition.Steps))

	for i, step := range flow.Definition.Steps {
		execution, err := newStepExecution(run, step, "", i)
		if err != nil {
			return nil, err
		}

		if i == 0 {
			execution.Status = models.StepStatusInProgress
			startedAt := now
			execution.StartedAt = &startedAt
		}

		steps = append(steps, execution)
	}

	return &InitializedRun{Run: run, Steps: steps}, nil
}

func newStepExecution(run *models.FlowRun, step *models.Step, scope string, index int) (*models.StepExecution, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate step execution id: %w", err)
	}

	contactID, userID := AssigneeFor(step, run.RoleAssignments, run.StartedBy)

	return &models.StepExecution{
		ID:                  id.String(),
		FlowRunID:           run.ID,
		StepID:              step.ID,
		StepIndex:           index,
		Path:                scope,
		Status:              models.StepStatusPending,
		AssignedToContactID: contactID,
		AssignedToUserID:    userID,
	}, nil
}
