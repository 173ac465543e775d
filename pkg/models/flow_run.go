package models

import "time"

// RunStatus represents the lifecycle state of a flow run.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// FlowRun is one executing instance of a flow. Created at start, mutated
// by the activation engine, terminal when all steps resolve or the run is
// cancelled.
type FlowRun struct {
	ID               string            `json:"id"`
	FlowID           string            `json:"flow_id"            validate:"required"`
	Name             string            `json:"name"`
	Status           RunStatus         `json:"status"             validate:"required"`
	CurrentStepIndex int               `json:"current_step_index"`
	StartedBy        string            `json:"started_by"`
	OrganizationID   string            `json:"organization_id"`
	RoleAssignments  map[string]string `json:"role_assignments,omitempty"` // role name -> contact id
	KickoffData      map[string]any    `json:"kickoff_data,omitempty"`
	CallbackURL      string            `json:"callback_url,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	LastActivityAt   time.Time         `json:"last_activity_at"`
}

// IsTerminal reports whether the run reached a final state.
func (r *FlowRun) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusCancelled
}
