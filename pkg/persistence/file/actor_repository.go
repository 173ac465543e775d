package file

import (
	"context"

	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence"
)

const (
	organizationsCollection = "organizations"
	usersCollection         = "users"
	contactsCollection      = "contacts"
)

// ActorRepository stores organizations, users and contacts as JSON files.
type ActorRepository struct {
	root string
}

func (r *ActorRepository) OrganizationByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization

	err := readDocument(r.root, organizationsCollection, id, &org, persistence.ErrOrganizationNotFound)
	if err != nil {
		return nil, err
	}

	return &org, nil
}

func (r *ActorRepository) SaveOrganization(ctx context.Context, org *models.Organization) error {
	return writeDocument(r.root, organizationsCollection, org.ID, org)
}

func (r *ActorRepository) UserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User

	err := readDocument(r.root, usersCollection, id, &user, persistence.ErrUserNotFound)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *ActorRepository) SaveUser(ctx context.Context, user *models.User) error {
	return writeDocument(r.root, usersCollection, user.ID, user)
}

func (r *ActorRepository) ContactByID(ctx context.Context, id string) (*models.Contact, error) {
	var contact models.Contact

	err := readDocument(r.root, contactsCollection, id, &contact, persistence.ErrContactNotFound)
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

func (r *ActorRepository) SaveContact(ctx context.Context, contact *models.Contact) error {
	return writeDocument(r.root, contactsCollection, contact.ID, contact)
}
