package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/flowdesk/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service errors to RFC 7807 responses on the
// management API.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsNotFoundError(err):
		return notFound(c, err.Error())

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		return internalError(c, err)
	}
}

// WebhookErrorBody is the error half of the webhook envelope.
type WebhookErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WebhookErrorResponse is the envelope external webhook callers receive on
// failure.
type WebhookErrorResponse struct {
	Success bool             `json:"success"`
	Error   WebhookErrorBody `json:"error"`
}

func webhookError(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(WebhookErrorResponse{
		Success: false,
		Error:   WebhookErrorBody{Code: code, Message: message},
	})
}

// handleWebhookError maps service errors to the webhook envelope. Internal
// detail stays out of the message; webhook callers are external.
func handleWebhookError(c fiber.Ctx, err error) error {
	switch {
	case services.IsNotFoundError(err):
		return webhookError(c, fiber.StatusNotFound, services.CodeNotFound, "Flow not found")

	case services.IsValidationError(err):
		return webhookError(c, fiber.StatusBadRequest, services.CodeValidationError, serviceMessage(err))

	case services.IsConflictError(err):
		return webhookError(c, fiber.StatusConflict, services.CodeConflict, serviceMessage(err))

	default:
		return webhookError(c, fiber.StatusInternalServerError, services.CodeInternalError, "Internal server error")
	}
}

func serviceMessage(err error) string {
	var serviceErr *services.ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Message != "" {
		return serviceErr.Message
	}

	return err.Error()
}
