package flowrun

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukex/flowdesk/pkg/models"
)

func TestResolveRolesDropsUnknownAndEmpty(t *testing.T) {
	placeholders := []*models.AssigneePlaceholder{
		{ID: "p1", RoleName: "client"},
		{ID: "p2", RoleName: "reviewer"},
	}

	resolved := ResolveRoles(placeholders, map[string]string{
		"client":   "contact-1",
		"reviewer": "",
		"stranger": "contact-9",
	})

	assert.Equal(t, map[string]string{"client": "contact-1"}, resolved)
}

func TestResolveRolesEmptyInputs(t *testing.T) {
	assert.Empty(t, ResolveRoles(nil, map[string]string{"client": "contact-1"}))
	assert.Empty(t, ResolveRoles([]*models.AssigneePlaceholder{{ID: "p1", RoleName: "client"}}, nil))
}

func TestAssigneeForResolvedRole(t *testing.T) {
	step := &models.Step{ID: "s1", Assignee: "client"}

	contactID, userID := AssigneeFor(step, map[string]string{"client": "contact-1"}, "user-1")

	assert.Equal(t, "contact-1", *contactID)
	assert.Nil(t, userID)
}

func TestAssigneeForCoordinatorFallsBackToStarter(t *testing.T) {
	step := &models.Step{ID: "s1", Assignee: models.RoleCoordinator}

	contactID, userID := AssigneeFor(step, map[string]string{}, "user-1")

	assert.Nil(t, contactID)
	assert.Equal(t, "user-1", *userID)
}

func TestAssigneeForCoordinatorPrefersResolvedContact(t *testing.T) {
	step := &models.Step{ID: "s1", Assignee: models.RoleCoordinator}

	contactID, userID := AssigneeFor(step, map[string]string{models.RoleCoordinator: "contact-2"}, "user-1")

	assert.Equal(t, "contact-2", *contactID)
	assert.Nil(t, userID)
}

func TestAssigneeForUnresolved(t *testing.T) {
	contactID, userID := AssigneeFor(&models.Step{ID: "s1", Assignee: "nobody"}, nil, "user-1")
	assert.Nil(t, contactID)
	assert.Nil(t, userID)

	contactID, userID = AssigneeFor(&models.Step{ID: "s2"}, map[string]string{"client": "contact-1"}, "user-1")
	assert.Nil(t, contactID)
	assert.Nil(t, userID)
}
