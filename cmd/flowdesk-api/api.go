// Package main provides the flowdesk API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dukex/flowdesk/pkg/audit"
	"github.com/dukex/flowdesk/pkg/eventbus"
	"github.com/dukex/flowdesk/pkg/flowrun"
	"github.com/dukex/flowdesk/pkg/notify"
	"github.com/dukex/flowdesk/pkg/persistence"
	"github.com/dukex/flowdesk/pkg/services"
	"github.com/dukex/flowdesk/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	magicLinks  notify.MagicLinkStore
	notifier    notify.Notifier
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	magicLinks notify.MagicLinkStore,
	notifier notify.Notifier,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		eventBus:    eventBus,
		magicLinks:  magicLinks,
		notifier:    notifier,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	auditLogger := audit.NewLogger(a.eventBus, a.logger)
	engine := flowrun.NewEngine(
		a.persistence,
		notify.NewDueScheduler(a.persistence.ScheduleRepository()),
		a.magicLinks,
		a.notifier,
		auditLogger,
		a.eventBus,
		a.logger,
	)

	flowService := services.NewFlow(a.persistence)
	runService := services.NewRun(a.persistence, engine, a.eventBus, auditLogger, a.magicLinks, a.logger)

	handlers := web.NewAPIHandlers(flowService, runService, a.validate)
	webhooks := web.NewWebhookHandlers(flowService, runService)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowdesk API")
	})

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

	runs := app.Group("/runs")
	runs.Get("/:id", handlers.GetRun)
	runs.Post("/:id/cancel", handlers.CancelRun)

	app.Post("/step-executions/:id/complete", handlers.CompleteStep)
	app.Post("/magic-links/:token/complete", handlers.CompleteMagicLink)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	if err := services.NewBootstrap(a.persistence, a.logger).EnsureDefaults(ctx); err != nil {
		return err
	}

	return a.App().Listen(":" + strconv.Itoa(port))
}
