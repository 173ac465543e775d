// Package flowrun implements the flow-run interpreter: role resolution,
// run initialization and the step activation engine.
package flowrun

import (
	"github.com/dukex/flowdesk/pkg/models"
)

// ResolveRoles restricts caller-supplied role assignments to the roles the
// definition declares. Unknown roles and empty contact ids are dropped
// silently; webhook callers routinely send extra keys and partial maps,
// and run start tolerates both.
func ResolveRoles(placeholders []*models.AssigneePlaceholder, assignments map[string]string) map[string]string {
	known := make(map[string]bool, len(placeholders))
	for _, placeholder := range placeholders {
		known[placeholder.RoleName] = true
	}

	resolved := make(map[string]string)

	for role, contactID := range assignments {
		if known[role] && contactID != "" {
			resolved[role] = contactID
		}
	}

	return resolved
}

// AssigneeFor resolves a step's configured role to a concrete assignee.
// A resolved role assigns the contact. The coordinator sentinel role
// assigns the run starter's user id, but only when no contact resolved
// for it. Steps with no role, or an unresolved one, stay unassigned.
func AssigneeFor(step *models.Step, resolved map[string]string, starterUserID string) (contactID, userID *string) {
	if step.Assignee == "" {
		return nil, nil
	}

	if id, ok := resolved[step.Assignee]; ok {
		return &id, nil
	}

	if step.Assignee == models.RoleCoordinator && starterUserID != "" {
		id := starterUserID

		return nil, &id
	}

	return nil, nil
}
