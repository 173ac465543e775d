package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowdesk/pkg/audit"
	"github.com/dukex/flowdesk/pkg/channels/gochannel"
	"github.com/dukex/flowdesk/pkg/eventbus"
	"github.com/dukex/flowdesk/pkg/flowrun"
	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/notify"
	"github.com/dukex/flowdesk/pkg/persistence"
	"github.com/dukex/flowdesk/pkg/persistence/file"
	"github.com/dukex/flowdesk/pkg/services"
	"github.com/dukex/flowdesk/pkg/web"
)

type testNotifier struct {
	mu         sync.Mutex
	magicLinks []notify.MagicLinkEmail
}

func (n *testNotifier) SendMagicLink(_ context.Context, email notify.MagicLinkEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.magicLinks = append(n.magicLinks, email)

	return nil
}

func (n *testNotifier) SendReminder(_ context.Context, _ notify.ReminderEmail) error {
	return nil
}

func (n *testNotifier) lastToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.magicLinks) == 0 {
		return ""
	}

	return n.magicLinks[len(n.magicLinks)-1].Token
}

type testApp struct {
	app         *fiber.App
	persistence persistence.Persistence
	notifier    *testNotifier
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &testNotifier{}
	magicLinks := notify.NewMemoryMagicLinkStore()
	auditLogger := audit.NewLogger(bus, logger)
	engine := flowrun.NewEngine(
		p,
		notify.NewDueScheduler(p.ScheduleRepository()),
		magicLinks,
		notifier,
		auditLogger,
		bus,
		logger,
	)

	require.NoError(t, services.NewBootstrap(p, logger).EnsureDefaults(context.Background()))

	flowService := services.NewFlow(p)
	runService := services.NewRun(p, engine, bus, auditLogger, magicLinks, logger)

	handlers := web.NewAPIHandlers(flowService, runService, validator.New(validator.WithRequiredStructEnabled()))
	webhooks := web.NewWebhookHandlers(flowService, runService)

	app := fiber.New()

	hooks := app.Group("/api/webhooks/flows")
	hooks.Post("/:flowId/start", webhooks.StartFlow)
	hooks.Get("/:flowId/schema", webhooks.FlowSchema)

	flows := app.Group("/flows")
	flows.Get("/", handlers.GetFlows)
	flows.Post("/", handlers.CreateFlow)
	flows.Get("/:id", handlers.GetFlow)
	flows.Patch("/:id", handlers.UpdateFlow)
	flows.Delete("/:id", handlers.DeleteFlow)
	flows.Post("/:id/publish", handlers.PublishFlow)
	flows.Get("/:id/runs", handlers.GetFlowRuns)

	app.Get("/runs/:id", handlers.GetRun)
	app.Post("/runs/:id/cancel", handlers.CancelRun)
	app.Post("/step-executions/:id/complete", handlers.CompleteStep)
	app.Post("/magic-links/:token/complete", handlers.CompleteMagicLink)
	app.Get("/health", handlers.HealthCheck)

	return &testApp{app: app, persistence: p, notifier: notifier}
}

func seedOnboardingFlow(t *testing.T, ta *testApp) {
	t.Helper()

	flow := &models.Flow{
		ID:     "flow-1",
		Name:   "Client onboarding",
		Status: models.FlowStatusPublished,
		Definition: &models.FlowDefinition{
			AssigneePlaceholders: []*models.AssigneePlaceholder{
				{ID: "p1", RoleName: "client"},
			},
			Kickoff: &models.KickoffConfig{Fields: []*models.KickoffField{
				{Name: "company", Type: "string", Required: true},
			}},
			Steps: []*models.Step{
				{ID: "s1", Type: models.StepTypeForm, Name: "Intake form", Assignee: "client", Config: &models.FormConfig{}},
				{ID: "s2", Type: models.StepTypeTodo, Name: "Send welcome pack", Config: &models.TodoConfig{}},
			},
		},
	}
	require.NoError(t, ta.persistence.FlowRepository().Save(context.Background(), flow))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func TestWebhookStartFlow(t *testing.T) {
	ta := setupTestApp(t)
	seedOnboardingFlow(t, ta)

	req := jsonRequest(t, http.MethodPost, "/api/webhooks/flows/flow-1/start", web.StartRunRequest{
		Name:            "Acme onboarding",
		RoleAssignments: map[string]string{"client": "contact-1"},
		KickoffData:     map[string]any{"company": "Acme"},
	})

	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var hydrated services.HydratedRun

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hydrated))
	assert.Equal(t, "flow-1", hydrated.Flow.ID)
	assert.Equal(t, "Acme onboarding", hydrated.Run.Name)
	require.Len(t, hydrated.StepExecutions, 2)
	assert.Equal(t, models.StepStatusInProgress, hydrated.StepExecutions[0].Status)
	assert.Equal(t, models.StepStatusPending, hydrated.StepExecutions[1].Status)
}

func TestWebhookStartFlowNotFound(t *testing.T) {
	ta := setupTestApp(t)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/webhooks/flows/missing/start", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var envelope web.WebhookErrorResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
}

func TestWebhookStartFlowWithoutSteps(t *testing.T) {
	ta := setupTestApp(t)

	flow := &models.Flow{
		ID:         "flow-empty",
		Name:       "Empty flow",
		Status:     models.FlowStatusDraft,
		Definition: &models.FlowDefinition{},
	}
	require.NoError(t, ta.persistence.FlowRepository().Save(context.Background(), flow))

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/webhooks/flows/flow-empty/start", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var envelope web.WebhookErrorResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
	assert.Equal(t, "Flow has no steps defined", envelope.Error.Message)
}

func TestWebhookStartFlowInvalidDefinition(t *testing.T) {
	ta := setupTestApp(t)

	flow := &models.Flow{
		ID:     "flow-dup",
		Name:   "Duplicate steps",
		Status: models.FlowStatusPublished,
		Definition: &models.FlowDefinition{
			Steps: []*models.Step{
				{ID: "s1", Type: models.StepTypeTodo, Name: "First", Config: &models.TodoConfig{}},
				{ID: "s1", Type: models.StepTypeTodo, Name: "Second", Config: &models.TodoConfig{}},
			},
		},
	}
	require.NoError(t, ta.persistence.FlowRepository().Save(context.Background(), flow))

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/webhooks/flows/flow-dup/start", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var envelope web.WebhookErrorResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
	assert.Contains(t, envelope.Error.Message, "duplicate step id")
}

func TestWebhookFlowSchema(t *testing.T) {
	ta := setupTestApp(t)
	seedOnboardingFlow(t, ta)

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/webhooks/flows/flow-1/schema", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var schema services.FlowSchema

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&schema))
	assert.Equal(t, "flow-1", schema.FlowID)
	assert.Equal(t, "Client onboarding", schema.FlowName)
	require.Len(t, schema.AssigneePlaceholders, 1)
	require.Len(t, schema.KickoffFields, 1)
	assert.Equal(t, "company", schema.KickoffFields[0].Name)
}

func TestWebhookFlowSchemaNotFound(t *testing.T) {
	ta := setupTestApp(t)

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/api/webhooks/flows/missing/schema", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMagicLinkCompletion(t *testing.T) {
	ta := setupTestApp(t)
	seedOnboardingFlow(t, ta)

	require.NoError(t, ta.persistence.ActorRepository().SaveContact(context.Background(), &models.Contact{
		ID:    "contact-1",
		Email: "ana@example.com",
		Name:  "Ana",
	}))

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/webhooks/flows/flow-1/start", web.StartRunRequest{
		RoleAssignments: map[string]string{"client": "contact-1"},
		KickoffData:     map[string]any{"company": "Acme"},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	token := ta.notifier.lastToken()
	require.NotEmpty(t, token)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/magic-links/"+token+"/complete", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var hydrated services.HydratedRun

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hydrated))
	assert.Equal(t, models.StepStatusCompleted, hydrated.StepExecutions[0].Status)
	assert.Equal(t, models.StepStatusInProgress, hydrated.StepExecutions[1].Status)

	// tokens are single use
	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/magic-links/"+token+"/complete", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFlowLifecycleOverHTTP(t *testing.T) {
	ta := setupTestApp(t)

	definition := &models.FlowDefinition{
		Steps: []*models.Step{
			{ID: "s1", Type: models.StepTypeTodo, Name: "Only step", Config: &models.TodoConfig{}},
		},
	}

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/flows/", web.CreateFlowRequest{
		Name:       "Client onboarding",
		Definition: definition,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var flow models.Flow

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&flow))
	assert.Equal(t, models.FlowStatusDraft, flow.Status)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/flows/"+flow.ID+"/publish", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPatch, "/flows/"+flow.ID, web.UpdateFlowRequest{}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateFlowValidation(t *testing.T) {
	ta := setupTestApp(t)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/flows/", web.CreateFlowRequest{Name: "ab"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelRunOverHTTP(t *testing.T) {
	ta := setupTestApp(t)
	seedOnboardingFlow(t, ta)

	resp, err := ta.app.Test(jsonRequest(t, http.MethodPost, "/api/webhooks/flows/flow-1/start", web.StartRunRequest{
		KickoffData: map[string]any{"company": "Acme"},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var hydrated services.HydratedRun

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hydrated))

	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/runs/"+hydrated.Run.ID+"/cancel", web.CancelRunRequest{Reason: "duplicate"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var cancelled services.HydratedRun

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cancelled))
	assert.Equal(t, models.RunStatusCancelled, cancelled.Run.Status)

	// cancelling twice conflicts
	resp, err = ta.app.Test(jsonRequest(t, http.MethodPost, "/runs/"+hydrated.Run.ID+"/cancel", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	ta := setupTestApp(t)

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
