package models

import (
	"errors"
	"fmt"
)

// ErrNoSteps indicates a definition whose top-level step sequence is empty.
var ErrNoSteps = errors.New("flow has no steps defined")

// WalkSteps visits every step in the definition depth-first, including
// steps nested inside branch paths. The walk stops when fn returns false.
func (d *FlowDefinition) WalkSteps(fn func(step *Step) bool) {
	walkSteps(d.Steps, fn)
}

func walkSteps(steps []*Step, fn func(step *Step) bool) bool {
	for _, step := range steps {
		if !fn(step) {
			return false
		}

		for _, path := range step.Paths() {
			if !walkSteps(path.Steps, fn) {
				return false
			}
		}
	}

	return true
}

// FindStep returns the step with the given id anywhere in the tree.
func (d *FlowDefinition) FindStep(stepID string) *Step {
	var found *Step

	d.WalkSteps(func(step *Step) bool {
		if step.ID == stepID {
			found = step

			return false
		}

		return true
	})

	return found
}

// Validate performs structural validation of the definition: non-empty
// top-level sequence, unique step ids across the whole tree, well-formed
// per-type configs, goto targets resolving to goto destinations, and
// milestones attached to existing steps.
func (d *FlowDefinition) Validate() error {
	if len(d.Steps) == 0 {
		return ErrNoSteps
	}

	seen := make(map[string]bool)
	destinations := make(map[string]bool)
	gotoTargets := make(map[string]string) // goto step id -> target id

	var walkErr error

	d.WalkSteps(func(step *Step) bool {
		if step.ID == "" {
			walkErr = errors.New("step id is required")

			return false
		}

		if seen[step.ID] {
			walkErr = fmt.Errorf("duplicate step id %q", step.ID)

			return false
		}

		seen[step.ID] = true

		if step.Config != nil {
			if err := step.Config.Validate(); err != nil {
				walkErr = fmt.Errorf("step %s: %w", step.ID, err)

				return false
			}
		}

		switch config := step.Config.(type) {
		case *GotoConfig:
			gotoTargets[step.ID] = config.TargetID
		case *GotoDestinationConfig:
			destinations[step.ID] = true
		}

		return true
	})

	if walkErr != nil {
		return walkErr
	}

	for stepID, targetID := range gotoTargets {
		if !destinations[targetID] {
			return fmt.Errorf("goto step %s targets unknown destination %q", stepID, targetID)
		}
	}

	for _, milestone := range d.Milestones {
		if !seen[milestone.AfterStepID] {
			return fmt.Errorf("milestone %q attached to unknown step %q", milestone.Name, milestone.AfterStepID)
		}
	}

	return nil
}
