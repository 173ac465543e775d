package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/flowdesk/pkg/services"
)

// WebhookHandlers serves the endpoints external systems call to start runs
// and discover what a start request must contain.
type WebhookHandlers struct {
	flowService *services.Flow
	runService  *services.Run
}

func NewWebhookHandlers(flowService *services.Flow, runService *services.Run) *WebhookHandlers {
	return &WebhookHandlers{
		flowService: flowService,
		runService:  runService,
	}
}

// StartFlow starts a run for a flow. Responds 201 with the hydrated run.
func (h *WebhookHandlers) StartFlow(c fiber.Ctx) error {
	flowID := c.Params("flowId")
	if flowID == "" {
		return webhookError(c, fiber.StatusBadRequest, services.CodeValidationError, "Flow ID is required")
	}

	var req StartRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return webhookError(c, fiber.StatusBadRequest, services.CodeValidationError, "Invalid request body: "+err.Error())
		}
	}

	hydrated, err := h.runService.StartRun(c.Context(), services.StartRunRequest{
		FlowID:          flowID,
		Name:            req.Name,
		RoleAssignments: req.RoleAssignments,
		KickoffData:     req.KickoffData,
		CallbackURL:     req.CallbackURL,
		Source:          services.SourceWebhook,
	})
	if err != nil {
		return handleWebhookError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(hydrated)
}

// FlowSchema describes the start contract of a flow: assignee placeholders
// to resolve and kickoff fields to fill.
func (h *WebhookHandlers) FlowSchema(c fiber.Ctx) error {
	flowID := c.Params("flowId")
	if flowID == "" {
		return webhookError(c, fiber.StatusBadRequest, services.CodeValidationError, "Flow ID is required")
	}

	schema, err := h.flowService.Schema(c.Context(), flowID)
	if err != nil {
		return handleWebhookError(c, err)
	}

	return c.JSON(schema)
}
