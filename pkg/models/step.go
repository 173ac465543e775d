package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StepType discriminates the step config union.
type StepType string

const (
	StepTypeForm               StepType = "form"
	StepTypeApproval           StepType = "approval"
	StepTypeFileRequest        StepType = "file_request"
	StepTypeTodo               StepType = "todo"
	StepTypeDecision           StepType = "decision"
	StepTypeSingleChoiceBranch StepType = "single_choice_branch"
	StepTypeMultiChoiceBranch  StepType = "multi_choice_branch"
	StepTypeParallelBranch     StepType = "parallel_branch"
	StepTypeGoto               StepType = "goto"
	StepTypeGotoDestination    StepType = "goto_destination"
)

// DueUnit is the unit of a step's due offset.
type DueUnit string

const (
	DueUnitHours DueUnit = "hours"
	DueUnitDays  DueUnit = "days"
	DueUnitWeeks DueUnit = "weeks"
)

// DueConfig is the step's due offset relative to activation.
type DueConfig struct {
	Value int     `json:"value" validate:"required,min=1"`
	Unit  DueUnit `json:"unit"  validate:"required,oneof=hours days weeks"`
}

// Duration converts the due offset to a time.Duration.
func (d DueConfig) Duration() time.Duration {
	switch d.Unit {
	case DueUnitHours:
		return time.Duration(d.Value) * time.Hour
	case DueUnitDays:
		return time.Duration(d.Value) * 24 * time.Hour
	case DueUnitWeeks:
		return time.Duration(d.Value) * 7 * 24 * time.Hour
	default:
		return 0
	}
}

// StepConfig is the type-specific configuration of a step. Each step type
// has its own concrete config struct.
type StepConfig interface {
	Kind() StepType
	Validate() error
}

// Step is one node of a flow definition. Branch-typed steps embed nested
// step sequences through their config's paths.
type Step struct {
	ID          string          `json:"id"          validate:"required"`
	Type        StepType        `json:"type"        validate:"required"`
	Name        string          `json:"name"        validate:"required"`
	Description string          `json:"description,omitempty"`
	Assignee    string          `json:"assignee,omitempty"` // role placeholder name
	Due         *DueConfig      `json:"due,omitempty"`
	Reminders   *ReminderPolicy `json:"reminders,omitempty"`
	Config      StepConfig      `json:"config,omitempty"`
}

// Path is one labeled branch path holding a nested step sequence.
type Path struct {
	Name  string  `json:"name"  validate:"required"`
	Steps []*Step `json:"steps"`
}

// FormConfig captures structured input from the assignee.
type FormConfig struct {
	Fields []*KickoffField `json:"fields"`
}

func (c *FormConfig) Kind() StepType { return StepTypeForm }

func (c *FormConfig) Validate() error {
	for _, field := range c.Fields {
		if field.Name == "" {
			return errors.New("form field name is required")
		}
	}

	return nil
}

// ApprovalConfig asks the assignee for one of a fixed set of outcomes.
type ApprovalConfig struct {
	Outcomes []string `json:"outcomes,omitempty"`
}

func (c *ApprovalConfig) Kind() StepType { return StepTypeApproval }

func (c *ApprovalConfig) Validate() error { return nil }

// DefaultApprovalOutcomes are used when an approval step declares none.
var DefaultApprovalOutcomes = []string{"approved", "rejected"}

// EffectiveOutcomes returns the declared outcomes or the defaults.
func (c *ApprovalConfig) EffectiveOutcomes() []string {
	if len(c.Outcomes) > 0 {
		return c.Outcomes
	}

	return DefaultApprovalOutcomes
}

// FileRequestConfig asks the assignee to upload files.
type FileRequestConfig struct {
	AcceptedTypes []string `json:"accepted_types,omitempty"`
	MaxFiles      int      `json:"max_files,omitempty"`
}

func (c *FileRequestConfig) Kind() StepType { return StepTypeFileRequest }

func (c *FileRequestConfig) Validate() error {
	if c.MaxFiles < 0 {
		return errors.New("file request max_files cannot be negative")
	}

	return nil
}

// TodoConfig is a plain checklist task.
type TodoConfig struct {
	Checklist []string `json:"checklist,omitempty"`
}

func (c *TodoConfig) Kind() StepType { return StepTypeTodo }

func (c *TodoConfig) Validate() error { return nil }

// DecisionConfig routes the run down exactly one outcome path.
type DecisionConfig struct {
	Paths []*Path `json:"paths"`
}

func (c *DecisionConfig) Kind() StepType { return StepTypeDecision }

func (c *DecisionConfig) Validate() error { return validatePaths(c.Paths) }

// SingleChoiceBranchConfig fans out into exactly one chosen path.
type SingleChoiceBranchConfig struct {
	Paths []*Path `json:"paths"`
}

func (c *SingleChoiceBranchConfig) Kind() StepType { return StepTypeSingleChoiceBranch }

func (c *SingleChoiceBranchConfig) Validate() error { return validatePaths(c.Paths) }

// MultiChoiceBranchConfig fans out into one or more chosen paths.
type MultiChoiceBranchConfig struct {
	Paths    []*Path `json:"paths"`
	MinPaths int     `json:"min_paths,omitempty"`
}

func (c *MultiChoiceBranchConfig) Kind() StepType { return StepTypeMultiChoiceBranch }

func (c *MultiChoiceBranchConfig) Validate() error {
	if err := validatePaths(c.Paths); err != nil {
		return err
	}

	if c.MinPaths > len(c.Paths) {
		return fmt.Errorf("min_paths %d exceeds declared paths %d", c.MinPaths, len(c.Paths))
	}

	return nil
}

// ParallelBranchConfig starts all paths concurrently.
type ParallelBranchConfig struct {
	Paths []*Path `json:"paths"`
}

func (c *ParallelBranchConfig) Kind() StepType { return StepTypeParallelBranch }

func (c *ParallelBranchConfig) Validate() error { return validatePaths(c.Paths) }

// GotoConfig jumps execution to a named destination instead of advancing
// linearly.
type GotoConfig struct {
	TargetID string `json:"target_id" validate:"required"`
}

func (c *GotoConfig) Kind() StepType { return StepTypeGoto }

func (c *GotoConfig) Validate() error {
	if c.TargetID == "" {
		return errors.New("goto target_id is required")
	}

	return nil
}

// GotoDestinationConfig marks a landing point for goto jumps.
type GotoDestinationConfig struct {
	Label string `json:"label,omitempty"`
}

func (c *GotoDestinationConfig) Kind() StepType { return StepTypeGotoDestination }

func (c *GotoDestinationConfig) Validate() error { return nil }

func validatePaths(paths []*Path) error {
	if len(paths) == 0 {
		return errors.New("branch step requires at least one path")
	}

	seen := make(map[string]bool, len(paths))

	for _, path := range paths {
		if path.Name == "" {
			return errors.New("branch path name is required")
		}

		if seen[path.Name] {
			return fmt.Errorf("duplicate branch path name %q", path.Name)
		}

		seen[path.Name] = true
	}

	return nil
}

// Paths returns the branch paths of the step, or nil for non-branch types.
func (s *Step) Paths() []*Path {
	switch config := s.Config.(type) {
	case *DecisionConfig:
		return config.Paths
	case *SingleChoiceBranchConfig:
		return config.Paths
	case *MultiChoiceBranchConfig:
		return config.Paths
	case *ParallelBranchConfig:
		return config.Paths
	default:
		return nil
	}
}

// IsBranch reports whether the step fans out into nested paths.
func (s *Step) IsBranch() bool {
	switch s.Type {
	case StepTypeDecision, StepTypeSingleChoiceBranch, StepTypeMultiChoiceBranch, StepTypeParallelBranch:
		return true
	default:
		return false
	}
}

type stepAlias struct {
	ID          string          `json:"id"`
	Type        StepType        `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Assignee    string          `json:"assignee,omitempty"`
	Due         *DueConfig      `json:"due,omitempty"`
	Reminders   *ReminderPolicy `json:"reminders,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON decodes the config union based on the declared type.
func (s *Step) UnmarshalJSON(data []byte) error {
	var alias stepAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	s.ID = alias.ID
	s.Type = alias.Type
	s.Name = alias.Name
	s.Description = alias.Description
	s.Assignee = alias.Assignee
	s.Due = alias.Due
	s.Reminders = alias.Reminders

	config, err := newStepConfig(alias.Type)
	if err != nil {
		return err
	}

	if len(alias.Config) > 0 {
		if err := json.Unmarshal(alias.Config, config); err != nil {
			return fmt.Errorf("failed to decode %s config for step %s: %w", alias.Type, alias.ID, err)
		}
	}

	s.Config = config

	return nil
}

func newStepConfig(stepType StepType) (StepConfig, error) {
	switch stepType {
	case StepTypeForm:
		return &FormConfig{}, nil
	case StepTypeApproval:
		return &ApprovalConfig{}, nil
	case StepTypeFileRequest:
		return &FileRequestConfig{}, nil
	case StepTypeTodo:
		return &TodoConfig{}, nil
	case StepTypeDecision:
		return &DecisionConfig{}, nil
	case StepTypeSingleChoiceBranch:
		return &SingleChoiceBranchConfig{}, nil
	case StepTypeMultiChoiceBranch:
		return &MultiChoiceBranchConfig{}, nil
	case StepTypeParallelBranch:
		return &ParallelBranchConfig{}, nil
	case StepTypeGoto:
		return &GotoConfig{}, nil
	case StepTypeGotoDestination:
		return &GotoDestinationConfig{}, nil
	default:
		return nil, fmt.Errorf("unknown step type %q", stepType)
	}
}
