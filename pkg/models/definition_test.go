package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowdesk/pkg/models"
)

func branchDefinition() *models.FlowDefinition {
	return &models.FlowDefinition{
		Steps: []*models.Step{
			{ID: "s1", Name: "Collect documents", Type: models.StepTypeForm},
			{
				ID:   "s2",
				Name: "Route by size",
				Type: models.StepTypeDecision,
				Config: &models.DecisionConfig{
					Paths: []*models.Path{
						{Name: "small", Steps: []*models.Step{
							{ID: "s2a", Name: "Quick review", Type: models.StepTypeTodo},
						}},
						{Name: "large", Steps: []*models.Step{
							{ID: "s2b", Name: "Deep review", Type: models.StepTypeApproval},
							{ID: "s2c", Name: "Sign off", Type: models.StepTypeApproval},
						}},
					},
				},
			},
			{ID: "s3", Name: "Archive", Type: models.StepTypeTodo},
		},
	}
}

func TestFlowDefinitionValidate(t *testing.T) {
	assert.NoError(t, branchDefinition().Validate())
}

func TestFlowDefinitionValidateEmptySteps(t *testing.T) {
	def := &models.FlowDefinition{}
	assert.ErrorIs(t, def.Validate(), models.ErrNoSteps)
}

func TestFlowDefinitionValidateDuplicateIDs(t *testing.T) {
	def := branchDefinition()
	def.Steps[2].ID = "s2a" // collides with a nested path step

	err := def.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step id")
}

func TestFlowDefinitionValidateGotoTarget(t *testing.T) {
	def := &models.FlowDefinition{
		Steps: []*models.Step{
			{ID: "g1", Name: "Loop back", Type: models.StepTypeGoto, Config: &models.GotoConfig{TargetID: "missing"}},
		},
	}

	err := def.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown destination")

	def = &models.FlowDefinition{
		Steps: []*models.Step{
			{ID: "d1", Name: "Restart point", Type: models.StepTypeGotoDestination, Config: &models.GotoDestinationConfig{}},
			{ID: "g1", Name: "Loop back", Type: models.StepTypeGoto, Config: &models.GotoConfig{TargetID: "d1"}},
		},
	}
	assert.NoError(t, def.Validate())
}

func TestFlowDefinitionValidateMilestones(t *testing.T) {
	def := branchDefinition()
	def.Milestones = []*models.Milestone{{Name: "Review done", AfterStepID: "s2"}}
	assert.NoError(t, def.Validate())

	def.Milestones = []*models.Milestone{{Name: "Review done", AfterStepID: "nope"}}

	err := def.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

func TestWalkStepsVisitsNestedPaths(t *testing.T) {
	var visited []string

	branchDefinition().WalkSteps(func(step *models.Step) bool {
		visited = append(visited, step.ID)

		return true
	})

	assert.Equal(t, []string{"s1", "s2", "s2a", "s2b", "s2c", "s3"}, visited)
}

func TestFindStep(t *testing.T) {
	def := branchDefinition()

	step := def.FindStep("s2b")
	require.NotNil(t, step)
	assert.Equal(t, "Deep review", step.Name)

	assert.Nil(t, def.FindStep("nope"))
}

func TestStepUnmarshalJSONDecodesConfigUnion(t *testing.T) {
	raw := `{
		"id": "s2",
		"type": "decision",
		"name": "Route by size",
		"due": {"value": 2, "unit": "days"},
		"config": {"paths": [{"name": "small", "steps": []}, {"name": "large", "steps": []}]}
	}`

	var step models.Step
	require.NoError(t, json.Unmarshal([]byte(raw), &step))

	assert.Equal(t, models.StepTypeDecision, step.Type)
	require.NotNil(t, step.Due)
	assert.Equal(t, 48*time.Hour, step.Due.Duration())

	config, ok := step.Config.(*models.DecisionConfig)
	require.True(t, ok)
	require.Len(t, config.Paths, 2)
	assert.Equal(t, "small", config.Paths[0].Name)
	assert.True(t, step.IsBranch())
}

func TestStepUnmarshalJSONUnknownType(t *testing.T) {
	var step models.Step

	err := json.Unmarshal([]byte(`{"id": "x", "type": "teleport", "name": "X"}`), &step)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step type")
}

func TestDueConfigDuration(t *testing.T) {
	assert.Equal(t, 3*time.Hour, models.DueConfig{Value: 3, Unit: models.DueUnitHours}.Duration())
	assert.Equal(t, 48*time.Hour, models.DueConfig{Value: 2, Unit: models.DueUnitDays}.Duration())
	assert.Equal(t, 7*24*time.Hour, models.DueConfig{Value: 1, Unit: models.DueUnitWeeks}.Duration())
}

func TestEffectiveReminders(t *testing.T) {
	def := branchDefinition()
	step := def.FindStep("s1")

	policy := def.EffectiveReminders(step)
	assert.Equal(t, models.DefaultReminderLeadHours, policy.ReminderLeadHours)
	assert.Equal(t, models.DefaultEscalationLagHours, policy.EscalationLagHours)

	def.Reminders = &models.ReminderPolicy{ReminderLeadHours: 4}
	policy = def.EffectiveReminders(step)
	assert.Equal(t, 4, policy.ReminderLeadHours)
	assert.Equal(t, models.DefaultEscalationLagHours, policy.EscalationLagHours)

	step.Reminders = &models.ReminderPolicy{ReminderLeadHours: 2, EscalationLagHours: 6}
	policy = def.EffectiveReminders(step)
	assert.Equal(t, 2, policy.ReminderLeadHours)
	assert.Equal(t, 6, policy.EscalationLagHours)
}

func TestApprovalEffectiveOutcomes(t *testing.T) {
	config := &models.ApprovalConfig{}
	assert.Equal(t, models.DefaultApprovalOutcomes, config.EffectiveOutcomes())

	config.Outcomes = []string{"sign", "decline", "escalate"}
	assert.Equal(t, []string{"sign", "decline", "escalate"}, config.EffectiveOutcomes())
}

func TestMultiChoiceBranchConfigValidate(t *testing.T) {
	config := &models.MultiChoiceBranchConfig{
		Paths:    []*models.Path{{Name: "a"}, {Name: "b"}},
		MinPaths: 3,
	}

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_paths")

	config.MinPaths = 2
	assert.NoError(t, config.Validate())
}

func TestScheduleIsDue(t *testing.T) {
	now := time.Now().UTC()
	fired := now.Add(-time.Minute)

	schedule := &models.Schedule{Active: true, FireAt: now.Add(-time.Hour)}
	assert.True(t, schedule.IsDue(now))

	schedule.FiredAt = &fired
	assert.False(t, schedule.IsDue(now))

	schedule.FiredAt = nil
	schedule.Active = false
	assert.False(t, schedule.IsDue(now))

	schedule.Active = true
	schedule.FireAt = now.Add(time.Hour)
	assert.False(t, schedule.IsDue(now))
}
