package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence"
	"github.com/google/uuid"
)

// FlowRepository handles flow template database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

const flowColumns = `
	id
  , name
  , status
  , definition
  , organization_id
  , created_by
  , created_at
  , updated_at
  , published_at
  , deleted_at
`

// Flows returns all non-deleted flows, newest first.
func (r *FlowRepository) Flows(ctx context.Context) ([]*models.Flow, error) {
	query := `SELECT ` + flowColumns + `
		FROM flows
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

// FlowByID returns a flow by its ID.
func (r *FlowRepository) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	query := `SELECT ` + flowColumns + `
		FROM flows
		WHERE id = $1 AND deleted_at IS NULL
	`

	flow, err := scanFlow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("FlowByID", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

// Save upserts a flow.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	now := time.Now().UTC()

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	if flow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate flow ID: %w", err)
		}

		flow.ID = id.String()
	}

	definitionJSON, err := json.Marshal(flow.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	query := `
		INSERT INTO flows (id, name, status, definition, organization_id,
created_by, created_at, updated_at, published_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			definition = EXCLUDED.definition,
			organization_id = EXCLUDED.organization_id,
			created_by = EXCLUDED.created_by,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID,
		flow.Name,
		flow.Status,
		definitionJSON,
		nullString(flow.OrganizationID),
		nullString(flow.CreatedBy),
		flow.CreatedAt,
		flow.UpdatedAt,
		flow.PublishedAt,
		flow.DeletedAt,
	)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

// Delete soft deletes a flow by setting deleted_at.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE flows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlow(row rowScanner) (*models.Flow, error) {
	var (
		flow           models.Flow
		definitionJSON []byte
		organizationID sql.NullString
		createdBy      sql.NullString
	)

	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&flow.Status,
		&definitionJSON,
		&organizationID,
		&createdBy,
		&flow.CreatedAt,
		&flow.UpdatedAt,
		&flow.PublishedAt,
		&flow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	flow.OrganizationID = organizationID.String
	flow.CreatedBy = createdBy.String

	if len(definitionJSON) > 0 {
		flow.Definition = &models.FlowDefinition{}
		if err := json.Unmarshal(definitionJSON, flow.Definition); err != nil {
			return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
		}
	}

	return &flow, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
