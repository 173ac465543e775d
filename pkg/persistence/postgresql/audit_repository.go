package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/flowdesk/pkg/models"
	"github.com/google/uuid"
)

// AuditRepository appends run activity records.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate audit entry ID: %w", err)
		}

		entry.ID = id.String()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, flow_run_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.FlowRunID, entry.Action, detailsJSON, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// EntriesByRun returns a run's audit entries in append order.
func (r *AuditRepository) EntriesByRun(ctx context.Context, runID string) ([]*models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, flow_run_id, action, details, created_at
		FROM audit_log
		WHERE flow_run_id = $1
		ORDER BY created_at
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	defer func() { _ = rows.Close() }()

	entries := make([]*models.AuditEntry, 0)

	for rows.Next() {
		var (
			entry       models.AuditEntry
			detailsJSON []byte
		)

		err := rows.Scan(&entry.ID, &entry.FlowRunID, &entry.Action, &detailsJSON, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
