package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence"
)

// ErrFlowNotFound is returned when a flow is not found.
var ErrFlowNotFound = persistence.ErrFlowNotFound

// Flow manages flow templates: authoring, publishing and the caller-facing
// schema description.
type Flow struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

// NewFlow creates a new flow service.
func NewFlow(p persistence.Persistence) *Flow {
	return &Flow{
		persistence: p,
		validator:   validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListFlows returns all flows.
func (s *Flow) ListFlows(ctx context.Context) ([]*models.Flow, error) {
	flows, err := s.persistence.FlowRepository().Flows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	return flows, nil
}

// GetFlow returns one flow by id.
func (s *Flow) GetFlow(ctx context.Context, id string) (*models.Flow, error) {
	return s.persistence.FlowRepository().FlowByID(ctx, id)
}

// CreateFlowRequest contains the fields for a new flow template.
type CreateFlowRequest struct {
	Name           string                 `validate:"required,min=3"`
	Definition     *models.FlowDefinition `validate:"required"`
	OrganizationID string
	CreatedBy      string
}

// CreateFlow creates a draft flow. The definition is stored as given; it is
// only required to be structurally valid at publish time, so drafts can be
// saved half-finished.
func (s *Flow) CreateFlow(ctx context.Context, req CreateFlowRequest) (*models.Flow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, NewValidationError("CreateFlow", CodeValidationError, err.Error(), ErrInvalidRequest)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate flow id: %w", err)
	}

	now := time.Now().UTC()
	flow := &models.Flow{
		ID:             id.String(),
		Name:           req.Name,
		Status:         models.FlowStatusDraft,
		Definition:     req.Definition,
		OrganizationID: req.OrganizationID,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.persistence.FlowRepository().Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return flow, nil
}

// UpdateFlowRequest carries a partial template edit.
type UpdateFlowRequest struct {
	Name       *string
	Definition *models.FlowDefinition
}

// UpdateFlow edits a draft flow. Published flows are immutable; runs
// reference their definitions.
func (s *Flow) UpdateFlow(ctx context.Context, id string, req UpdateFlowRequest) (*models.Flow, error) {
	flow, err := s.persistence.FlowRepository().FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if flow.Status == models.FlowStatusPublished {
		return nil, fmt.Errorf("flow %s: %w", id, ErrCannotModifyPublished)
	}

	if req.Name != nil {
		if len(*req.Name) < 3 {
			return nil, NewValidationError("UpdateFlow", CodeValidationError, "flow name must have at least 3 characters", ErrFlowNameRequired)
		}

		flow.Name = *req.Name
	}

	if req.Definition != nil {
		flow.Definition = req.Definition
	}

	flow.UpdatedAt = time.Now().UTC()

	if err := s.persistence.FlowRepository().Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return flow, nil
}

// PublishFlow validates the definition and marks the flow startable.
func (s *Flow) PublishFlow(ctx context.Context, id string) (*models.Flow, error) {
	flow, err := s.persistence.FlowRepository().FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if flow.Status == models.FlowStatusPublished {
		return nil, fmt.Errorf("flow %s: %w", id, ErrAlreadyPublished)
	}

	if err := flow.Definition.Validate(); err != nil {
		return nil, NewValidationError("PublishFlow", CodeValidationError, err.Error(), err)
	}

	now := time.Now().UTC()
	flow.Status = models.FlowStatusPublished
	flow.PublishedAt = &now
	flow.UpdatedAt = now

	if err := s.persistence.FlowRepository().Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return flow, nil
}

// DeleteFlow soft-deletes a flow.
func (s *Flow) DeleteFlow(ctx context.Context, id string) error {
	return s.persistence.FlowRepository().Delete(ctx, id)
}

// FlowSchema describes what a webhook caller must supply to start a run:
// the roles to assign and the kickoff fields to fill.
type FlowSchema struct {
	FlowID               string                        `json:"flowId"`
	FlowName             string                        `json:"flowName"`
	AssigneePlaceholders []*models.AssigneePlaceholder `json:"assigneePlaceholders"`
	KickoffFields        []*models.KickoffField        `json:"kickoffFields"`
}

// Schema returns the start contract for a flow. Stable for a given
// template, regardless of run state.
func (s *Flow) Schema(ctx context.Context, id string) (*FlowSchema, error) {
	flow, err := s.persistence.FlowRepository().FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	schema := &FlowSchema{
		FlowID:               flow.ID,
		FlowName:             flow.Name,
		AssigneePlaceholders: []*models.AssigneePlaceholder{},
		KickoffFields:        []*models.KickoffField{},
	}

	if flow.Definition != nil {
		if flow.Definition.AssigneePlaceholders != nil {
			schema.AssigneePlaceholders = flow.Definition.AssigneePlaceholders
		}

		if flow.Definition.Kickoff != nil && flow.Definition.Kickoff.Fields != nil {
			schema.KickoffFields = flow.Definition.Kickoff.Fields
		}
	}

	return schema, nil
}
