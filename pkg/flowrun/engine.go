package flowrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/flowdesk/pkg/audit"
	"github.com/dukex/flowdesk/pkg/eventbus"
	"github.com/dukex/flowdesk/pkg/events"
	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/notify"
	"github.com/dukex/flowdesk/pkg/persistence"
)

// MaxGotoVisits bounds how often a single step may be re-activated through
// goto jumps before the transition fails.
const MaxGotoVisits = 25

var (
	ErrRunNotActive       = errors.New("flow run is not active")
	ErrStepNotActive      = errors.New("step execution is not in progress")
	ErrStepNotCompletable = errors.New("step resolves automatically and cannot be completed directly")
	ErrOutcomeRequired    = errors.New("step requires an outcome")
	ErrUnknownOutcome     = errors.New("outcome is not declared on the step")
	ErrUnknownPath        = errors.New("selected path is not declared on the branch step")
	ErrTooFewPaths        = errors.New("branch requires more selected paths")
	ErrGotoLimit          = errors.New("goto visit limit reached")
	ErrGotoUnreachable    = errors.New("goto destination has no execution row in this run")
)

// Engine drives step executions through their lifecycle. Every public
// operation loads the run, applies one transition including any automatic
// follow-up steps, and persists the results. Notification failures are
// logged and never fail a transition; persistence failures do.
type Engine struct {
	persistence persistence.Persistence
	scheduler   *notify.DueScheduler
	magicLinks  notify.MagicLinkStore
	notifier    notify.Notifier
	audit       *audit.Logger
	bus         eventbus.EventBus
	logger      *slog.Logger
	now         func() time.Time
}

func NewEngine(
	p persistence.Persistence,
	scheduler *notify.DueScheduler,
	magicLinks notify.MagicLinkStore,
	notifier notify.Notifier,
	auditLogger *audit.Logger,
	bus eventbus.EventBus,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: p,
		scheduler:   scheduler,
		magicLinks:  magicLinks,
		notifier:    notifier,
		audit:       auditLogger,
		bus:         bus,
		logger:      logger.With("module", "flowrun"),
		now:         time.Now,
	}
}

// transition is the loaded state one engine operation works on. Executions
// are indexed by step id, which is unique across the definition tree.
type transition struct {
	run        *models.FlowRun
	flow       *models.Flow
	graph      *Graph
	executions map[string]*models.StepExecution
	now        time.Time
}

func (e *Engine) load(ctx context.Context, runID string) (*transition, error) {
	runs := e.persistence.RunRepository()

	run, err := runs.RunByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	flow, err := e.persistence.FlowRepository().FlowByID(ctx, run.FlowID)
	if err != nil {
		return nil, err
	}

	graph, err := Compile(flow.Definition)
	if err != nil {
		return nil, fmt.Errorf("flow %s has an invalid definition: %w", flow.ID, err)
	}

	list, err := runs.StepExecutions(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	executions := make(map[string]*models.StepExecution, len(list))
	for _, execution := range list {
		executions[execution.StepID] = execution
	}

	return &transition{
		run:        run,
		flow:       flow,
		graph:      graph,
		executions: executions,
		now:        e.now().UTC(),
	}, nil
}

// ActivateInitial runs the first step's activation side effects for a freshly
// created run: due schedules, magic link delivery, audit and events, plus any
// automatic steps at the head of the sequence. The run and its rows must
// already be persisted.
func (e *Engine) ActivateInitial(ctx context.Context, flow *models.Flow, run *models.FlowRun, steps []*models.StepExecution) error {
	graph, err := Compile(flow.Definition)
	if err != nil {
		return fmt.Errorf("flow %s has an invalid definition: %w", flow.ID, err)
	}

	t := &transition{
		run:        run,
		flow:       flow,
		graph:      graph,
		executions: make(map[string]*models.StepExecution, len(steps)),
		now:        e.now().UTC(),
	}
	for _, execution := range steps {
		t.executions[execution.StepID] = execution
	}

	first := graph.TopLevel()[0]

	if err := e.afterActivation(ctx, t, first, t.executions[first.Step.ID]); err != nil {
		return err
	}

	return e.finish(ctx, t)
}

// CompleteStep resolves an in-progress step execution with an outcome and
// advances the run: next step activation, branch fan-out or fan-in, goto
// jumps and run completion all happen here. Returns the updated run.
func (e *Engine) CompleteStep(ctx context.Context, stepExecutionID string, outcome *string) (*models.FlowRun, error) {
	loaded, err := e.persistence.RunRepository().StepExecutionByID(ctx, stepExecutionID)
	if err != nil {
		return nil, err
	}

	t, err := e.load(ctx, loaded.FlowRunID)
	if err != nil {
		return nil, err
	}

	if t.run.IsTerminal() {
		return nil, fmt.Errorf("run %s: %w", t.run.ID, ErrRunNotActive)
	}

	execution := t.executions[loaded.StepID]

	node, err := t.graph.Node(execution.StepID)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.StepStatusInProgress {
		return nil, fmt.Errorf("step %s is %s: %w", execution.StepID, execution.Status, ErrStepNotActive)
	}

	switch node.Step.Type {
	case models.StepTypeGoto, models.StepTypeGotoDestination, models.StepTypeParallelBranch:
		return nil, fmt.Errorf("step %s (%s): %w", execution.StepID, node.Step.Type, ErrStepNotCompletable)

	case models.StepTypeDecision, models.StepTypeSingleChoiceBranch, models.StepTypeMultiChoiceBranch:
		names, err := selectedPaths(node.Step, outcome)
		if err != nil {
			return nil, err
		}

		// The branch row keeps running while its paths do; it resolves
		// on fan-in, when every materialized path step has resolved.
		execution.Outcome = outcome
		if err := e.persistence.RunRepository().SaveStepExecution(ctx, execution); err != nil {
			return nil, err
		}

		if err := e.enterPaths(ctx, t, node, names); err != nil {
			return nil, err
		}

	case models.StepTypeApproval:
		if err := validateApprovalOutcome(node.Step, outcome); err != nil {
			return nil, err
		}

		if err := e.resolveStep(ctx, t, node, execution, outcome); err != nil {
			return nil, err
		}

	default:
		if err := e.resolveStep(ctx, t, node, execution, outcome); err != nil {
			return nil, err
		}
	}

	if err := e.finish(ctx, t); err != nil {
		return nil, err
	}

	return t.run, nil
}

// CancelRun terminates a run early. Unresolved steps are marked skipped and
// their schedules deactivated.
func (e *Engine) CancelRun(ctx context.Context, runID, reason string) (*models.FlowRun, error) {
	t, err := e.load(ctx, runID)
	if err != nil {
		return nil, err
	}

	if t.run.IsTerminal() {
		return nil, fmt.Errorf("run %s: %w", t.run.ID, ErrRunNotActive)
	}

	for _, execution := range t.executions {
		if execution.IsResolved() {
			continue
		}

		node, err := t.graph.Node(execution.StepID)
		if err != nil {
			return nil, err
		}

		if err := e.skipStep(ctx, t, node, execution); err != nil {
			return nil, err
		}
	}

	t.run.Status = models.RunStatusCancelled
	completedAt := t.now
	t.run.CompletedAt = &completedAt

	e.audit.Log(ctx, t.run.ID, models.AuditFlowRunCancelled, map[string]any{"reason": reason})
	e.publish(ctx, t, events.RunCancelled{
		BaseEvent: e.base(t, events.RunCancelledEvent),
		FlowID:    t.flow.ID,
		Reason:    reason,
	})

	if err := e.finish(ctx, t); err != nil {
		return nil, err
	}

	return t.run, nil
}

// finish persists the run state every transition touches.
func (e *Engine) finish(ctx context.Context, t *transition) error {
	t.run.LastActivityAt = t.now

	return e.persistence.RunRepository().UpdateRun(ctx, t.run)
}

// activate moves one existing execution row into progress and runs the
// activation side effects. A resolved row being activated again is a goto
// re-entry and counts against the visit limit.
func (e *Engine) activate(ctx context.Context, t *transition, node *Node) error {
	execution := t.executions[node.Step.ID]
	if execution == nil {
		return fmt.Errorf("step %s has no execution row in run %s", node.Step.ID, t.run.ID)
	}

	if execution.IsResolved() {
		if execution.VisitCount+1 >= MaxGotoVisits {
			return fmt.Errorf("step %s visited %d times: %w", node.Step.ID, execution.VisitCount+1, ErrGotoLimit)
		}

		execution.VisitCount++
		execution.CompletedAt = nil
		execution.Outcome = nil
	}

	execution.Status = models.StepStatusInProgress
	startedAt := t.now
	execution.StartedAt = &startedAt

	if err := e.persistence.RunRepository().SaveStepExecution(ctx, execution); err != nil {
		return err
	}

	t.run.CurrentStepIndex = t.graph.TopLevelIndex(node)

	return e.afterActivation(ctx, t, node, execution)
}

func (e *Engine) afterActivation(ctx context.Context, t *transition, node *Node, execution *models.StepExecution) error {
	dueAt, err := e.scheduler.OnStepActivated(ctx, t.flow.Definition, node.Step, execution)
	if err != nil {
		return fmt.Errorf("failed to register due schedules for step %s: %w", node.Step.ID, err)
	}

	if execution.AssignedToContactID != nil && !automatic(node.Step.Type) {
		e.sendMagicLink(ctx, t, node, execution)
	}

	e.audit.Log(ctx, t.run.ID, models.AuditStepActivated, map[string]any{
		"step_id":           node.Step.ID,
		"step_execution_id": execution.ID,
		"step_name":         node.Step.Name,
	})
	e.publish(ctx, t, events.StepActivated{
		BaseEvent:           e.base(t, events.StepActivatedEvent),
		StepExecutionID:     execution.ID,
		StepID:              node.Step.ID,
		StepName:            node.Step.Name,
		AssignedToContactID: execution.AssignedToContactID,
		AssignedToUserID:    execution.AssignedToUserID,
		DueAt:               dueAt,
	})

	switch node.Step.Type {
	case models.StepTypeGotoDestination:
		// destinations are markers, they resolve immediately
		return e.resolveStep(ctx, t, node, execution, nil)
	case models.StepTypeGoto:
		return e.executeGoto(ctx, t, node, execution)
	case models.StepTypeParallelBranch:
		return e.enterPaths(ctx, t, node, pathNames(node.Step))
	}

	return nil
}

// resolveStep completes an execution and advances the run past it.
func (e *Engine) resolveStep(ctx context.Context, t *transition, node *Node, execution *models.StepExecution, outcome *string) error {
	if err := e.completeStepRow(ctx, t, node, execution, outcome); err != nil {
		return err
	}

	return e.advance(ctx, t, node)
}

func (e *Engine) completeStepRow(ctx context.Context, t *transition, node *Node, execution *models.StepExecution, outcome *string) error {
	execution.Status = models.StepStatusCompleted
	completedAt := t.now
	execution.CompletedAt = &completedAt

	if outcome != nil {
		execution.Outcome = outcome
	}

	if err := e.persistence.RunRepository().SaveStepExecution(ctx, execution); err != nil {
		return err
	}

	if err := e.scheduler.OnStepResolved(ctx, execution.ID); err != nil {
		e.logger.WarnContext(ctx, "Failed to deactivate schedules", "step_execution_id", execution.ID, "error", err)
	}

	e.audit.Log(ctx, t.run.ID, models.AuditStepCompleted, map[string]any{
		"step_id":           node.Step.ID,
		"step_execution_id": execution.ID,
		"outcome":           execution.Outcome,
	})
	e.publish(ctx, t, events.StepCompleted{
		BaseEvent:       e.base(t, events.StepCompletedEvent),
		StepExecutionID: execution.ID,
		StepID:          node.Step.ID,
		Outcome:         execution.Outcome,
	})

	return nil
}

func (e *Engine) skipStep(ctx context.Context, t *transition, node *Node, execution *models.StepExecution) error {
	execution.Status = models.StepStatusSkipped
	completedAt := t.now
	execution.CompletedAt = &completedAt

	if err := e.persistence.RunRepository().SaveStepExecution(ctx, execution); err != nil {
		return err
	}

	if err := e.scheduler.OnStepResolved(ctx, execution.ID); err != nil {
		e.logger.WarnContext(ctx, "Failed to deactivate schedules", "step_execution_id", execution.ID, "error", err)
	}

	e.audit.Log(ctx, t.run.ID, models.AuditStepSkipped, map[string]any{
		"step_id":           node.Step.ID,
		"step_execution_id": execution.ID,
	})
	e.publish(ctx, t, events.StepSkipped{
		BaseEvent:       e.base(t, events.StepSkippedEvent),
		StepExecutionID: execution.ID,
		StepID:          node.Step.ID,
	})

	return nil
}

// advance moves past a resolved node: next step in sequence, fan-in check
// for a finished branch path, or run completion at the end of the top-level
// sequence.
func (e *Engine) advance(ctx context.Context, t *transition, node *Node) error {
	if node.NextID != "" {
		next, err := t.graph.Node(node.NextID)
		if err != nil {
			return err
		}

		return e.activate(ctx, t, next)
	}

	if node.ParentID != "" {
		return e.fanIn(ctx, t, node.ParentID)
	}

	return e.maybeCompleteRun(ctx, t)
}

// fanIn resolves a branch once every materialized step under it has
// resolved. Nested branches count as a single direct child here; they stay
// in progress until their own fan-in fires.
func (e *Engine) fanIn(ctx context.Context, t *transition, branchID string) error {
	prefix := branchID + "/"

	for _, execution := range t.executions {
		if strings.HasPrefix(execution.Path, prefix) && !execution.IsResolved() {
			return nil
		}
	}

	branchNode, err := t.graph.Node(branchID)
	if err != nil {
		return err
	}

	return e.resolveStep(ctx, t, branchNode, t.executions[branchID], nil)
}

// enterPaths materializes execution rows for the selected paths and
// activates the first step of each. Rows left over from a previous visit
// are reset to pending first.
func (e *Engine) enterPaths(ctx context.Context, t *transition, node *Node, names []string) error {
	var created []*models.StepExecution

	var heads []*Node

	for _, name := range names {
		pathNodes := t.graph.PathSteps(node.Step.ID, name)
		if len(pathNodes) == 0 {
			continue
		}

		for _, pathNode := range pathNodes {
			existing := t.executions[pathNode.Step.ID]
			if existing == nil {
				execution, err := newStepExecution(t.run, pathNode.Step, pathNode.Scope, pathNode.Index)
				if err != nil {
					return err
				}

				t.executions[pathNode.Step.ID] = execution
				created = append(created, execution)

				continue
			}

			if existing.IsResolved() {
				existing.Status = models.StepStatusPending
				existing.StartedAt = nil
				existing.CompletedAt = nil
				existing.Outcome = nil

				if err := e.persistence.RunRepository().SaveStepExecution(ctx, existing); err != nil {
					return err
				}
			}
		}

		heads = append(heads, pathNodes[0])
	}

	if len(created) > 0 {
		if err := e.persistence.RunRepository().CreateStepExecutions(ctx, created); err != nil {
			return err
		}
	}

	if len(heads) == 0 {
		// all selected paths were empty, the branch resolves at once
		return e.fanIn(ctx, t, node.Step.ID)
	}

	for _, head := range heads {
		if err := e.activate(ctx, t, head); err != nil {
			return err
		}
	}

	return nil
}

// executeGoto completes the goto step and re-activates its destination.
// Forward jumps skip the steps they bypass in the same sequence; backward
// jumps leave completed history in place and replay from the destination.
func (e *Engine) executeGoto(ctx context.Context, t *transition, node *Node, execution *models.StepExecution) error {
	config, ok := node.Step.Config.(*models.GotoConfig)
	if !ok {
		return fmt.Errorf("goto step %s has no goto config", node.Step.ID)
	}

	target, err := t.graph.Node(config.TargetID)
	if err != nil {
		return err
	}

	if t.executions[target.Step.ID] == nil {
		return fmt.Errorf("goto step %s targets %s: %w", node.Step.ID, config.TargetID, ErrGotoUnreachable)
	}

	if err := e.completeStepRow(ctx, t, node, execution, nil); err != nil {
		return err
	}

	if target.Scope == node.Scope && target.Index > node.Index {
		for _, between := range t.graph.Between(node.Scope, node.Index, target.Index) {
			skipped := t.executions[between.Step.ID]
			if skipped == nil || skipped.IsResolved() {
				continue
			}

			if err := e.skipStep(ctx, t, between, skipped); err != nil {
				return err
			}
		}
	}

	return e.activate(ctx, t, target)
}

func (e *Engine) maybeCompleteRun(ctx context.Context, t *transition) error {
	for _, execution := range t.executions {
		if !execution.IsResolved() {
			return nil
		}
	}

	t.run.Status = models.RunStatusCompleted
	completedAt := t.now
	t.run.CompletedAt = &completedAt

	e.audit.Log(ctx, t.run.ID, models.AuditFlowRunCompleted, map[string]any{
		"duration_seconds": t.now.Sub(t.run.StartedAt).Seconds(),
	})
	e.publish(ctx, t, events.RunCompleted{
		BaseEvent: e.base(t, events.RunCompletedEvent),
		FlowID:    t.flow.ID,
		Duration:  t.now.Sub(t.run.StartedAt),
	})

	return nil
}

func (e *Engine) sendMagicLink(ctx context.Context, t *transition, node *Node, execution *models.StepExecution) {
	contact, err := e.persistence.ActorRepository().ContactByID(ctx, *execution.AssignedToContactID)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to load contact for magic link", "contact_id", *execution.AssignedToContactID, "error", err)

		return
	}

	token, err := e.magicLinks.Issue(ctx, execution.ID)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to issue magic link token", "step_execution_id", execution.ID, "error", err)

		return
	}

	email := notify.MagicLinkEmail{
		To:          contact.Email,
		ContactName: contact.Name,
		StepName:    node.Step.Name,
		FlowName:    t.flow.Name,
		Token:       token,
	}
	if err := e.notifier.SendMagicLink(ctx, email); err != nil {
		e.logger.WarnContext(ctx, "Failed to send magic link email", "to", contact.Email, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, t *transition, event eventbus.Event) {
	if err := e.bus.Publish(ctx, t.run.ID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "run_id", t.run.ID, "error", err)
	}
}

func (e *Engine) base(t *transition, eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:        e.bus.GenerateID(),
		Type:      eventType,
		Timestamp: t.now,
		FlowRunID: t.run.ID,
	}
}

func automatic(stepType models.StepType) bool {
	return stepType == models.StepTypeGoto ||
		stepType == models.StepTypeGotoDestination ||
		stepType == models.StepTypeParallelBranch
}

func pathNames(step *models.Step) []string {
	paths := step.Paths()

	names := make([]string, 0, len(paths))
	for _, path := range paths {
		names = append(names, path.Name)
	}

	return names
}

// selectedPaths parses and validates a branch outcome. Decision and single
// choice steps take one path name, multi choice takes a comma separated
// list honoring min_paths.
func selectedPaths(step *models.Step, outcome *string) ([]string, error) {
	if outcome == nil || *outcome == "" {
		return nil, fmt.Errorf("step %s: %w", step.ID, ErrOutcomeRequired)
	}

	declared := pathNames(step)

	var names []string

	for _, name := range strings.Split(*outcome, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if !slices.Contains(declared, name) {
			return nil, fmt.Errorf("step %s path %q: %w", step.ID, name, ErrUnknownPath)
		}

		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("step %s: %w", step.ID, ErrOutcomeRequired)
	}

	if step.Type == models.StepTypeDecision || step.Type == models.StepTypeSingleChoiceBranch {
		if len(names) > 1 {
			return nil, fmt.Errorf("step %s selects %d paths, wants one: %w", step.ID, len(names), ErrUnknownPath)
		}

		return names, nil
	}

	if config, ok := step.Config.(*models.MultiChoiceBranchConfig); ok && config.MinPaths > 0 && len(names) < config.MinPaths {
		return nil, fmt.Errorf("step %s selects %d of minimum %d paths: %w", step.ID, len(names), config.MinPaths, ErrTooFewPaths)
	}

	return names, nil
}

func validateApprovalOutcome(step *models.Step, outcome *string) error {
	config, ok := step.Config.(*models.ApprovalConfig)
	if !ok {
		return nil
	}

	if outcome == nil || *outcome == "" {
		return fmt.Errorf("approval step %s: %w", step.ID, ErrOutcomeRequired)
	}

	if !slices.Contains(config.EffectiveOutcomes(), *outcome) {
		return fmt.Errorf("approval step %s outcome %q: %w", step.ID, *outcome, ErrUnknownOutcome)
	}

	return nil
}
