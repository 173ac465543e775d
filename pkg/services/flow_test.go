package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowdesk/pkg/models"
)

func TestCreateFlowStartsAsDraft(t *testing.T) {
	ts := newTestServices(t)

	flow, err := ts.flows.CreateFlow(context.Background(), CreateFlowRequest{
		Name:       "Client onboarding",
		Definition: onboardingDefinition(),
		CreatedBy:  DefaultUserID,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, flow.ID)
	assert.Equal(t, models.FlowStatusDraft, flow.Status)
	assert.Nil(t, flow.PublishedAt)
}

func TestCreateFlowValidatesName(t *testing.T) {
	ts := newTestServices(t)

	_, err := ts.flows.CreateFlow(context.Background(), CreateFlowRequest{
		Name:       "ab",
		Definition: onboardingDefinition(),
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestPublishFlowValidatesDefinition(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	empty, err := ts.flows.CreateFlow(ctx, CreateFlowRequest{
		Name:       "Empty flow",
		Definition: &models.FlowDefinition{},
	})
	require.NoError(t, err)

	_, err = ts.flows.PublishFlow(ctx, empty.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNoSteps)
}

func TestPublishFlowOnce(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	flow, err := ts.flows.CreateFlow(ctx, CreateFlowRequest{
		Name:       "Client onboarding",
		Definition: onboardingDefinition(),
	})
	require.NoError(t, err)

	published, err := ts.flows.PublishFlow(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlowStatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)

	_, err = ts.flows.PublishFlow(ctx, flow.ID)
	assert.ErrorIs(t, err, ErrAlreadyPublished)
	assert.True(t, IsConflictError(err))
}

func TestUpdateFlowRejectsPublished(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	flow, err := ts.flows.CreateFlow(ctx, CreateFlowRequest{
		Name:       "Client onboarding",
		Definition: onboardingDefinition(),
	})
	require.NoError(t, err)

	_, err = ts.flows.PublishFlow(ctx, flow.ID)
	require.NoError(t, err)

	name := "Renamed"
	_, err = ts.flows.UpdateFlow(ctx, flow.ID, UpdateFlowRequest{Name: &name})
	assert.ErrorIs(t, err, ErrCannotModifyPublished)
}

func TestSchemaDescribesStartContract(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	seedFlow(t, ts, onboardingDefinition())

	schema, err := ts.flows.Schema(ctx, "flow-1")
	require.NoError(t, err)

	assert.Equal(t, "flow-1", schema.FlowID)
	assert.Equal(t, "Client onboarding", schema.FlowName)
	require.Len(t, schema.AssigneePlaceholders, 1)
	assert.Equal(t, "client", schema.AssigneePlaceholders[0].RoleName)
	require.Len(t, schema.KickoffFields, 1)
	assert.Equal(t, "company", schema.KickoffFields[0].Name)
}

func TestSchemaUnchangedByRunState(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	seedFlow(t, ts, onboardingDefinition())

	before, err := ts.flows.Schema(ctx, "flow-1")
	require.NoError(t, err)

	_, err = ts.runs.StartRun(ctx, StartRunRequest{
		FlowID:      "flow-1",
		KickoffData: map[string]any{"company": "Acme"},
	})
	require.NoError(t, err)

	after, err := ts.flows.Schema(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSchemaUnknownFlow(t *testing.T) {
	ts := newTestServices(t)

	_, err := ts.flows.Schema(context.Background(), "missing")
	assert.True(t, IsNotFoundError(err))
}

func TestSchemaEmptyDefinitionSections(t *testing.T) {
	ts := newTestServices(t)

	seedFlow(t, ts, &models.FlowDefinition{
		Steps: []*models.Step{
			{ID: "s1", Type: models.StepTypeTodo, Name: "Only step", Config: &models.TodoConfig{}},
		},
	})

	schema, err := ts.flows.Schema(context.Background(), "flow-1")
	require.NoError(t, err)
	assert.Empty(t, schema.AssigneePlaceholders)
	assert.Empty(t, schema.KickoffFields)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	// newTestServices seeded once already, a second pass must not fail
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, NewBootstrap(ts.persistence, logger).EnsureDefaults(ctx))

	org, err := ts.persistence.ActorRepository().OrganizationByID(ctx, DefaultOrganizationID)
	require.NoError(t, err)
	assert.Equal(t, "Default Organization", org.Name)

	user, err := ts.persistence.ActorRepository().UserByID(ctx, DefaultUserID)
	require.NoError(t, err)
	assert.Equal(t, DefaultOrganizationID, user.OrganizationID)
}
