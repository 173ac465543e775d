package flowrun

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowdesk/pkg/models"
)

func onboardingFlow() *models.Flow {
	return &models.Flow{
		ID:     "flow-1",
		Name:   "Client onboarding",
		Status: models.FlowStatusPublished,
		Definition: &models.FlowDefinition{
			AssigneePlaceholders: []*models.AssigneePlaceholder{
				{ID: "p1", RoleName: "client"},
			},
			Steps: []*models.Step{
				{ID: "s1", Type: models.StepTypeForm, Name: "Intake form", Assignee: "client", Config: &models.FormConfig{}},
				{ID: "s2", Type: models.StepTypeApproval, Name: "Review intake", Assignee: models.RoleCoordinator, Config: &models.ApprovalConfig{}},
				{ID: "s3", Type: models.StepTypeTodo, Name: "Send welcome pack", Config: &models.TodoConfig{}},
			},
		},
	}
}

func TestInitializeRunCreatesOneRowPerStep(t *testing.T) {
	now := time.Now().UTC()

	initialized, err := InitializeRun(onboardingFlow(), StartParams{
		Name:            "Acme onboarding",
		StartedBy:       "user-1",
		OrganizationID:  "org-1",
		RoleAssignments: map[string]string{"client": "contact-1"},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusInProgress, initialized.Run.Status)
	assert.Equal(t, 0, initialized.Run.CurrentStepIndex)
	assert.Equal(t, now, initialized.Run.StartedAt)
	require.Len(t, initialized.Steps, 3)

	first := initialized.Steps[0]
	assert.Equal(t, models.StepStatusInProgress, first.Status)
	require.NotNil(t, first.StartedAt)
	assert.Equal(t, now, *first.StartedAt)

	for i, execution := range initialized.Steps[1:] {
		assert.Equal(t, models.StepStatusPending, execution.Status)
		assert.Nil(t, execution.StartedAt)
		assert.Equal(t, i+1, execution.StepIndex)
	}
}

func TestInitializeRunResolvesAssigneesUpFront(t *testing.T) {
	initialized, err := InitializeRun(onboardingFlow(), StartParams{
		StartedBy:       "user-1",
		RoleAssignments: map[string]string{"client": "contact-1"},
	}, time.Now())
	require.NoError(t, err)

	require.NotNil(t, initialized.Steps[0].AssignedToContactID)
	assert.Equal(t, "contact-1", *initialized.Steps[0].AssignedToContactID)

	require.NotNil(t, initialized.Steps[1].AssignedToUserID)
	assert.Equal(t, "user-1", *initialized.Steps[1].AssignedToUserID)

	assert.False(t, initialized.Steps[2].Assigned())
}

func TestInitializeRunDefaultsName(t *testing.T) {
	initialized, err := InitializeRun(onboardingFlow(), StartParams{StartedBy: "user-1"}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "Client onboarding run", initialized.Run.Name)
}

func TestInitializeRunRejectsEmptyDefinition(t *testing.T) {
	flow := &models.Flow{ID: "flow-2", Name: "Empty", Definition: &models.FlowDefinition{}}

	_, err := InitializeRun(flow, StartParams{StartedBy: "user-1"}, time.Now())
	assert.ErrorIs(t, err, models.ErrNoSteps)
}
