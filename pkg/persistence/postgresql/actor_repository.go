package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence"
)

// ActorRepository handles organization, user and contact storage.
type ActorRepository struct {
	db *sql.DB
}

// NewActorRepository creates a new actor repository.
func NewActorRepository(db *sql.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

func (r *ActorRepository) OrganizationByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM organizations WHERE id = $1`, id).
		Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrOrganizationNotFound
		}

		return nil, fmt.Errorf("failed to query organization: %w", err)
	}

	return &org, nil
}

func (r *ActorRepository) SaveOrganization(ctx context.Context, org *models.Organization) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, org.ID, org.Name, org.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save organization: %w", err)
	}

	return nil
}

func (r *ActorRepository) UserByID(ctx context.Context, id string) (*models.User, error) {
	var (
		user           models.User
		organizationID sql.NullString
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT id, organization_id, email, name, created_at FROM users WHERE id = $1`, id).
		Scan(&user.ID, &organizationID, &user.Email, &user.Name, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.OrganizationID = organizationID.String

	return &user, nil
}

func (r *ActorRepository) SaveUser(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, organization_id, email, name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			email = EXCLUDED.email,
			name = EXCLUDED.name
	`, user.ID, nullString(user.OrganizationID), user.Email, user.Name, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

func (r *ActorRepository) ContactByID(ctx context.Context, id string) (*models.Contact, error) {
	var (
		contact        models.Contact
		organizationID sql.NullString
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT id, organization_id, email, name, created_at FROM contacts WHERE id = $1`, id).
		Scan(&contact.ID, &organizationID, &contact.Email, &contact.Name, &contact.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrContactNotFound
		}

		return nil, fmt.Errorf("failed to query contact: %w", err)
	}

	contact.OrganizationID = organizationID.String

	return &contact, nil
}

func (r *ActorRepository) SaveContact(ctx context.Context, contact *models.Contact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, organization_id, email, name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			email = EXCLUDED.email,
			name = EXCLUDED.name
	`, contact.ID, nullString(contact.OrganizationID), contact.Email, contact.Name, contact.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}

	return nil
}
