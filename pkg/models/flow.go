// Package models defines the core domain models for flow-run execution.
package models

import "time"

// FlowStatus represents the lifecycle state of a flow template.
type FlowStatus string

const (
	FlowStatusDraft     FlowStatus = "draft"     // Editable, not startable
	FlowStatusPublished FlowStatus = "published" // Active, runs can be started
)

// Flow is a reusable process template. The definition is immutable once
// referenced by runs except through explicit template edits.
type Flow struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"            validate:"required,min=3"`
	Status         FlowStatus      `json:"status"          validate:"required"`
	Definition     *FlowDefinition `json:"definition"      validate:"required"`
	OrganizationID string          `json:"organization_id"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	PublishedAt    *time.Time      `json:"published_at,omitempty"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
}

// FlowDefinition is the authored process structure: an ordered step
// sequence with optional branch sub-sequences, milestones, role
// placeholders and kickoff configuration.
type FlowDefinition struct {
	Steps                []*Step                `json:"steps"`
	Milestones           []*Milestone           `json:"milestones,omitempty"`
	AssigneePlaceholders []*AssigneePlaceholder `json:"assignee_placeholders,omitempty"`
	Kickoff              *KickoffConfig         `json:"kickoff,omitempty"`
	Reminders            *ReminderPolicy        `json:"reminders,omitempty"`
}

// Milestone is a named phase marker attached after a given step, used for
// grouping consecutive steps. Display-only; it never affects sequencing.
type Milestone struct {
	Name        string `json:"name"          validate:"required"`
	AfterStepID string `json:"after_step_id" validate:"required"`
}

// AssigneePlaceholder is an abstract actor name declared on the template,
// resolved to a concrete contact or user per run.
type AssigneePlaceholder struct {
	ID       string `json:"id"        validate:"required"`
	RoleName string `json:"role_name" validate:"required"`
}

// RoleCoordinator is the sentinel role name for the person who started the
// run. It resolves to the starter's user id instead of a contact.
const RoleCoordinator = "coordinator"

// KickoffField describes one input captured from the caller at run start.
type KickoffField struct {
	Name     string `json:"name"     validate:"required"`
	Label    string `json:"label"`
	Type     string `json:"type"     validate:"required,oneof=string number boolean object array"`
	Required bool   `json:"required"`
}

// KickoffConfig declares the inputs a run-start caller must supply.
type KickoffConfig struct {
	Fields []*KickoffField `json:"fields"`
}

// ReminderPolicy controls due-date notifications. Lead and lag are hours
// relative to the step's due time. Flow-level values are defaults; a step
// may carry its own policy which replaces them.
type ReminderPolicy struct {
	ReminderLeadHours  int `json:"reminder_lead_hours"`
	EscalationLagHours int `json:"escalation_lag_hours"`
}

// Default reminder policy: first reminder 24h before due, escalation 48h
// after due to the coordinator.
const (
	DefaultReminderLeadHours  = 24
	DefaultEscalationLagHours = 48
)

// EffectiveReminders returns the policy for a step, applying flow defaults
// where the step does not override them.
func (d *FlowDefinition) EffectiveReminders(step *Step) ReminderPolicy {
	policy := ReminderPolicy{
		ReminderLeadHours:  DefaultReminderLeadHours,
		EscalationLagHours: DefaultEscalationLagHours,
	}

	if d.Reminders != nil {
		if d.Reminders.ReminderLeadHours > 0 {
			policy.ReminderLeadHours = d.Reminders.ReminderLeadHours
		}

		if d.Reminders.EscalationLagHours > 0 {
			policy.EscalationLagHours = d.Reminders.EscalationLagHours
		}
	}

	if step != nil && step.Reminders != nil {
		if step.Reminders.ReminderLeadHours > 0 {
			policy.ReminderLeadHours = step.Reminders.ReminderLeadHours
		}

		if step.Reminders.EscalationLagHours > 0 {
			policy.EscalationLagHours = step.Reminders.EscalationLagHours
		}
	}

	return policy
}

// PlaceholderRoles returns the declared role names in definition order.
func (d *FlowDefinition) PlaceholderRoles() []string {
	roles := make([]string, 0, len(d.AssigneePlaceholders))
	for _, p := range d.AssigneePlaceholders {
		roles = append(roles, p.RoleName)
	}

	return roles
}
