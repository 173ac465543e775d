// Package web provides HTTP handlers for flow management and webhook run
// intake.
package web

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/flowdesk/pkg/notify"
	"github.com/dukex/flowdesk/pkg/services"
)

type APIHandlers struct {
	flowService *services.Flow
	runService  *services.Run
	validator   *validator.Validate
}

func NewAPIHandlers(flowService *services.Flow, runService *services.Run, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		flowService: flowService,
		runService:  runService,
		validator:   validate,
	}
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	flows, err := h.flowService.ListFlows(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"flows": flows})
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	flow, err := h.flowService.GetFlow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.CreateFlow(c.Context(), services.CreateFlowRequest{
		Name:       req.Name,
		Definition: req.Definition,
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.UpdateFlow(c.Context(), id, services.UpdateFlowRequest{
		Name:       req.Name,
		Definition: req.Definition,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	if err := h.flowService.DeleteFlow(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	flow, err := h.flowService.PublishFlow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) GetFlowRuns(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Flow ID is required")
	}

	runs, err := h.runService.ListRuns(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	hydrated, err := h.runService.GetRun(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(hydrated)
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	var req CancelRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	hydrated, err := h.runService.CancelRun(c.Context(), id, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(hydrated)
}

func (h *APIHandlers) CompleteStep(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Step execution ID is required")
	}

	var req CompleteStepRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	hydrated, err := h.runService.CompleteStep(c.Context(), id, req.Outcome)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(hydrated)
}

// CompleteMagicLink completes the step a magic link token points at.
// Contacts hit this endpoint from their email, no session required.
func (h *APIHandlers) CompleteMagicLink(c fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return badRequest(c, "Token is required")
	}

	var req CompleteStepRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	hydrated, err := h.runService.CompleteStepByToken(c.Context(), token, req.Outcome)
	if err != nil {
		if errors.Is(err, notify.ErrTokenNotFound) {
			return notFound(c, "Magic link is invalid or expired")
		}

		return handleServiceError(c, err)
	}

	return c.JSON(hydrated)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.flowService.HealthCheck(c.Context())

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"healthy": healthy,
		"checks":  fiber.Map{"persistence": message},
	})
}
