package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence"
)

// Fixed ids for the seeded defaults. Runs started without an explicit
// starter fall back to these, so single-tenant and local setups work
// without account management.
const (
	DefaultOrganizationID = "org-default"
	DefaultUserID         = "user-default"
)

// Bootstrap seeds the default organization and user. It runs explicitly at
// process start, never lazily on a request path.
type Bootstrap struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewBootstrap creates a bootstrap service.
func NewBootstrap(p persistence.Persistence, logger *slog.Logger) *Bootstrap {
	return &Bootstrap{
		persistence: p,
		logger:      logger.With("module", "bootstrap"),
	}
}

// EnsureDefaults creates the default organization and user when missing.
// Idempotent.
func (b *Bootstrap) EnsureDefaults(ctx context.Context) error {
	actors := b.persistence.ActorRepository()
	now := time.Now().UTC()

	_, err := actors.OrganizationByID(ctx, DefaultOrganizationID)
	if errors.Is(err, persistence.ErrOrganizationNotFound) {
		org := &models.Organization{
			ID:        DefaultOrganizationID,
			Name:      "Default Organization",
			CreatedAt: now,
		}
		if err := actors.SaveOrganization(ctx, org); err != nil {
			return err
		}

		b.logger.InfoContext(ctx, "Seeded default organization", "organization_id", org.ID)
	} else if err != nil {
		return err
	}

	_, err = actors.UserByID(ctx, DefaultUserID)
	if errors.Is(err, persistence.ErrUserNotFound) {
		user := &models.User{
			ID:             DefaultUserID,
			OrganizationID: DefaultOrganizationID,
			Email:          "coordinator@flowdesk.local",
			Name:           "Default Coordinator",
			CreatedAt:      now,
		}
		if err := actors.SaveUser(ctx, user); err != nil {
			return err
		}

		b.logger.InfoContext(ctx, "Seeded default user", "user_id", user.ID)
	} else if err != nil {
		return err
	}

	return nil
}
