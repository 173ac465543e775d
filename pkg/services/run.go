package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowdesk/pkg/audit"
	"github.com/dukex/flowdesk/pkg/eventbus"
	"github.com/dukex/flowdesk/pkg/events"
	"github.com/dukex/flowdesk/pkg/flowrun"
	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/notify"
	"github.com/dukex/flowdesk/pkg/persistence"
)

// ErrRunNotFound is returned when a run is not found.
var ErrRunNotFound = persistence.ErrRunNotFound

// Run start sources, recorded in the audit trail.
const (
	SourceWebhook = "webhook"
	SourceAPI     = "api"
)

// Run orchestrates run lifecycle operations on top of the activation
// engine.
type Run struct {
	persistence persistence.Persistence
	engine      *flowrun.Engine
	bus         eventbus.EventBus
	audit       *audit.Logger
	magicLinks  notify.MagicLinkStore
	logger      *slog.Logger
}

// NewRun creates a new run service.
func NewRun(
	p persistence.Persistence,
	engine *flowrun.Engine,
	bus eventbus.EventBus,
	auditLogger *audit.Logger,
	magicLinks notify.MagicLinkStore,
	logger *slog.Logger,
) *Run {
	return &Run{
		persistence: p,
		engine:      engine,
		bus:         bus,
		audit:       auditLogger,
		magicLinks:  magicLinks,
		logger:      logger.With("module", "services"),
	}
}

// StartRunRequest carries everything a caller supplies to start a run.
type StartRunRequest struct {
	FlowID          string
	Name            string
	RoleAssignments map[string]string
	KickoffData     map[string]any
	CallbackURL     string
	StartedBy       string
	Source          string
}

// FlowSummary is the slice of the template embedded in a hydrated run.
type FlowSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StarterSummary identifies who started the run.
type StarterSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HydratedRun is a run together with its template summary, starter and
// ordered step executions.
type HydratedRun struct {
	Run            *models.FlowRun         `json:"run"`
	Flow           FlowSummary             `json:"flow"`
	Starter        *StarterSummary         `json:"starter,omitempty"`
	StepExecutions []*models.StepExecution `json:"stepExecutions"`
}

// StartRun validates the request, creates the run with its step execution
// rows in one transaction, and triggers the first step's activation side
// effects. Returns the hydrated run.
//
// Fails without writing anything when the flow is missing or its definition
// has no steps. Failures after the transaction are not rolled back; they
// propagate.
func (s *Run) StartRun(ctx context.Context, req StartRunRequest) (*HydratedRun, error) {
	flow, err := s.persistence.FlowRepository().FlowByID(ctx, req.FlowID)
	if err != nil {
		return nil, err
	}

	if flow.Definition == nil || len(flow.Definition.Steps) == 0 {
		return nil, NewValidationError("StartRun", CodeValidationError, "Flow has no steps defined", models.ErrNoSteps)
	}

	// drafts are startable and saved unvalidated, so the structural check
	// has to run here, before any row is written
	if err := flow.Definition.Validate(); err != nil {
		return nil, NewValidationError("StartRun", CodeValidationError, err.Error(), err)
	}

	if err := ValidateKickoffData(flow.Definition.Kickoff, req.KickoffData); err != nil {
		return nil, err
	}

	startedBy := req.StartedBy
	if startedBy == "" {
		startedBy = DefaultUserID
	}

	organizationID := flow.OrganizationID
	if organizationID == "" {
		organizationID = DefaultOrganizationID
	}

	initialized, err := flowrun.InitializeRun(flow, flowrun.StartParams{
		Name:            req.Name,
		StartedBy:       startedBy,
		OrganizationID:  organizationID,
		RoleAssignments: flowrun.ResolveRoles(flow.Definition.AssigneePlaceholders, req.RoleAssignments),
		KickoffData:     req.KickoffData,
		CallbackURL:     req.CallbackURL,
	}, nowUTC())
	if err != nil {
		return nil, err
	}

	if err := s.persistence.RunRepository().CreateRun(ctx, initialized.Run, initialized.Steps); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	run := initialized.Run

	action := models.AuditFlowRunStarted
	if req.Source == SourceWebhook {
		action = models.AuditWebhookFlowStarted
	}

	s.audit.Log(ctx, run.ID, action, map[string]any{
		"flow_id":    flow.ID,
		"flow_name":  flow.Name,
		"started_by": startedBy,
	})

	event := events.RunStarted{
		BaseEvent: events.BaseEvent{
			ID:        s.bus.GenerateID(),
			Type:      events.RunStartedEvent,
			Timestamp: run.StartedAt,
			FlowRunID: run.ID,
		},
		FlowID:      flow.ID,
		FlowName:    flow.Name,
		RunName:     run.Name,
		StartedBy:   startedBy,
		CallbackURL: req.CallbackURL,
		KickoffData: req.KickoffData,
		StepCount:   len(initialized.Steps),
	}
	if err := s.bus.Publish(ctx, run.ID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish run started event", "run_id", run.ID, "error", err)
	}

	if err := s.engine.ActivateInitial(ctx, flow, run, initialized.Steps); err != nil {
		return nil, fmt.Errorf("failed to activate first step: %w", err)
	}

	return s.hydrate(ctx, run.ID)
}

// GetRun returns one hydrated run.
func (s *Run) GetRun(ctx context.Context, id string) (*HydratedRun, error) {
	return s.hydrate(ctx, id)
}

// ListRuns returns the runs of one flow.
func (s *Run) ListRuns(ctx context.Context, flowID string) ([]*models.FlowRun, error) {
	if _, err := s.persistence.FlowRepository().FlowByID(ctx, flowID); err != nil {
		return nil, err
	}

	return s.persistence.RunRepository().RunsByFlow(ctx, flowID)
}

// CompleteStep resolves an in-progress step and advances the run.
func (s *Run) CompleteStep(ctx context.Context, stepExecutionID string, outcome *string) (*HydratedRun, error) {
	run, err := s.engine.CompleteStep(ctx, stepExecutionID, outcome)
	if err != nil {
		return nil, err
	}

	return s.hydrate(ctx, run.ID)
}

// CompleteStepByToken resolves a magic link token and completes the step it
// points at. The token is revoked afterwards.
func (s *Run) CompleteStepByToken(ctx context.Context, token string, outcome *string) (*HydratedRun, error) {
	stepExecutionID, err := s.magicLinks.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	hydrated, err := s.CompleteStep(ctx, stepExecutionID, outcome)
	if err != nil {
		return nil, err
	}

	if err := s.magicLinks.Revoke(ctx, token); err != nil {
		s.logger.WarnContext(ctx, "Failed to revoke magic link token", "error", err)
	}

	return hydrated, nil
}

// CancelRun terminates a run early.
func (s *Run) CancelRun(ctx context.Context, id, reason string) (*HydratedRun, error) {
	run, err := s.engine.CancelRun(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	return s.hydrate(ctx, run.ID)
}

func nowUTC() time.Time { return time.Now().UTC() }

func (s *Run) hydrate(ctx context.Context, runID string) (*HydratedRun, error) {
	run, err := s.persistence.RunRepository().RunByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	flow, err := s.persistence.FlowRepository().FlowByID(ctx, run.FlowID)
	if err != nil {
		return nil, err
	}

	executions, err := s.persistence.RunRepository().StepExecutions(ctx, runID)
	if err != nil {
		return nil, err
	}

	hydrated := &HydratedRun{
		Run:            run,
		Flow:           FlowSummary{ID: flow.ID, Name: flow.Name},
		StepExecutions: executions,
	}

	// starter lookup is best effort, external callers may start runs
	// before any user exists
	if run.StartedBy != "" {
		user, err := s.persistence.ActorRepository().UserByID(ctx, run.StartedBy)
		if err == nil {
			hydrated.Starter = &StarterSummary{ID: user.ID, Name: user.Name, Email: user.Email}
		}
	}

	return hydrated, nil
}
