// Package web provides HTTP request and response types for the flow API.
package web

import "github.com/dukex/flowdesk/pkg/models"

// StartRunRequest is the body of the webhook start endpoint. Everything is
// optional; unknown role names and extra kickoff keys are tolerated.
type StartRunRequest struct {
	Name            string            `json:"name,omitempty"`
	RoleAssignments map[string]string `json:"roleAssignments,omitempty"`
	KickoffData     map[string]any    `json:"kickoffData,omitempty"`
	CallbackURL     string            `json:"callbackUrl,omitempty"`
}

// CreateFlowRequest is the body for creating a flow template.
type CreateFlowRequest struct {
	Name       string                 `json:"name"       validate:"required,min=3"`
	Definition *models.FlowDefinition `json:"definition" validate:"required"`
	CreatedBy  string                 `json:"created_by"`
}

// UpdateFlowRequest is the body for a partial template edit.
type UpdateFlowRequest struct {
	Name       *string                `json:"name,omitempty" validate:"omitempty,min=3"`
	Definition *models.FlowDefinition `json:"definition,omitempty"`
}

// CompleteStepRequest is the body for completing a step execution.
type CompleteStepRequest struct {
	Outcome *string `json:"outcome,omitempty"`
}

// CancelRunRequest is the body for cancelling a run.
type CancelRunRequest struct {
	Reason string `json:"reason,omitempty"`
}
