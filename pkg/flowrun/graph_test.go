package flowrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowdesk/pkg/models"
)

func branchDefinition() *models.FlowDefinition {
	return &models.FlowDefinition{
		Steps: []*models.Step{
			{ID: "s1", Type: models.StepTypeTodo, Name: "Collect details", Config: &models.TodoConfig{}},
			{
				ID:   "s2",
				Type: models.StepTypeDecision,
				Name: "Route request",
				Config: &models.DecisionConfig{Paths: []*models.Path{
					{Name: "fast", Steps: []*models.Step{
						{ID: "s2a", Type: models.StepTypeTodo, Name: "Fast lane", Config: &models.TodoConfig{}},
					}},
					{Name: "slow", Steps: []*models.Step{
						{ID: "s2b", Type: models.StepTypeTodo, Name: "Slow lane", Config: &models.TodoConfig{}},
						{ID: "s2c", Type: models.StepTypeTodo, Name: "Slow review", Config: &models.TodoConfig{}},
					}},
				}},
			},
			{ID: "s3", Type: models.StepTypeTodo, Name: "Wrap up", Config: &models.TodoConfig{}},
		},
	}
}

func TestCompileTopLevelSequence(t *testing.T) {
	graph, err := Compile(branchDefinition())
	require.NoError(t, err)

	top := graph.TopLevel()
	require.Len(t, top, 3)
	assert.Equal(t, "s1", top[0].Step.ID)
	assert.Equal(t, "s2", top[0].NextID)
	assert.Equal(t, "s3", top[1].NextID)
	assert.Equal(t, "", top[2].NextID)
	assert.Equal(t, "", top[1].Scope)
}

func TestCompileBranchScopes(t *testing.T) {
	graph, err := Compile(branchDefinition())
	require.NoError(t, err)

	node, err := graph.Node("s2b")
	require.NoError(t, err)
	assert.Equal(t, "s2/slow", node.Scope)
	assert.Equal(t, "s2", node.ParentID)
	assert.Equal(t, "s2c", node.NextID)

	slow := graph.PathSteps("s2", "slow")
	require.Len(t, slow, 2)
	assert.Equal(t, "s2b", slow[0].Step.ID)
	assert.Equal(t, "s2c", slow[1].Step.ID)
}

func TestCompileRejectsInvalidDefinition(t *testing.T) {
	_, err := Compile(&models.FlowDefinition{})
	assert.ErrorIs(t, err, models.ErrNoSteps)
}

func TestTopLevelIndexWalksUpBranches(t *testing.T) {
	graph, err := Compile(branchDefinition())
	require.NoError(t, err)

	node, err := graph.Node("s2c")
	require.NoError(t, err)
	assert.Equal(t, 1, graph.TopLevelIndex(node))

	top, err := graph.Node("s3")
	require.NoError(t, err)
	assert.Equal(t, 2, graph.TopLevelIndex(top))
}

func TestBetween(t *testing.T) {
	graph, err := Compile(branchDefinition())
	require.NoError(t, err)

	between := graph.Between("", 0, 2)
	require.Len(t, between, 1)
	assert.Equal(t, "s2", between[0].Step.ID)

	assert.Empty(t, graph.Between("", 0, 1))
}

func TestNodeUnknownStep(t *testing.T) {
	graph, err := Compile(branchDefinition())
	require.NoError(t, err)

	_, err = graph.Node("missing")
	assert.Error(t, err)
}
