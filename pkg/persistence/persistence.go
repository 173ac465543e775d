// Package persistence provides the data storage abstraction for flows,
// runs, step executions and their collaborators.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/flowdesk/pkg/models"
)

type Persistence interface {
	FlowRepository() FlowRepository
	RunRepository() RunRepository
	ActorRepository() ActorRepository
	AuditRepository() AuditRepository
	ScheduleRepository() ScheduleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowRepository stores flow templates.
type FlowRepository interface {
	Flows(ctx context.Context) ([]*models.Flow, error)
	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	Save(ctx context.Context, flow *models.Flow) error
	Delete(ctx context.Context, id string) error
}

// RunRepository stores flow runs and their step executions.
type RunRepository interface {
	// CreateRun persists a run together with its initial step executions.
	// Implementations must make the write atomic: the run and its steps
	// appear together or not at all.
	CreateRun(ctx context.Context, run *models.FlowRun, steps []*models.StepExecution) error

	RunByID(ctx context.Context, id string) (*models.FlowRun, error)
	RunsByFlow(ctx context.Context, flowID string) ([]*models.FlowRun, error)
	UpdateRun(ctx context.Context, run *models.FlowRun) error
	TouchRunActivity(ctx context.Context, runID string, at time.Time) error

	StepExecutions(ctx context.Context, runID string) ([]*models.StepExecution, error)
	StepExecutionByID(ctx context.Context, id string) (*models.StepExecution, error)
	SaveStepExecution(ctx context.Context, execution *models.StepExecution) error
	CreateStepExecutions(ctx context.Context, executions []*models.StepExecution) error
}

// ActorRepository stores organizations, users and contacts.
type ActorRepository interface {
	OrganizationByID(ctx context.Context, id string) (*models.Organization, error)
	SaveOrganization(ctx context.Context, org *models.Organization) error

	UserByID(ctx context.Context, id string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error

	ContactByID(ctx context.Context, id string) (*models.Contact, error)
	SaveContact(ctx context.Context, contact *models.Contact) error
}

// AuditRepository appends and reads run activity records.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	EntriesByRun(ctx context.Context, runID string) ([]*models.AuditEntry, error)
}

// ScheduleRepository stores due-date notification registrations.
type ScheduleRepository interface {
	Save(ctx context.Context, schedule *models.Schedule) error
	DueSchedules(ctx context.Context, now time.Time, limit int) ([]*models.Schedule, error)
	MarkFired(ctx context.Context, id string, at time.Time) error
	DeactivateByStepExecution(ctx context.Context, stepExecutionID string) error
}
