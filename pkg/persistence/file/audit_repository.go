package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/flowdesk/pkg/models"
	"github.com/google/uuid"
)

const auditCollection = "audit_log"

// AuditRepository stores audit entries as JSON files.
type AuditRepository struct {
	root string
}

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

	return writeDocument(r.root, auditCollection, entry.ID, entry)
}

func (r *AuditRepository) EntriesByRun(ctx context.Context, runID string) ([]*models.AuditEntry, error) {
	entries := make([]*models.AuditEntry, 0)

	err := readCollection(r.root, auditCollection, func(data []byte) error {
		var entry models.AuditEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("failed to unmarshal audit entry: %w", err)
		}

		if entry.FlowRunID == runID {
			entries = append(entries, &entry)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}
