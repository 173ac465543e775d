// Package file provides file-based persistence for local development and
// tests. One JSON document per record, grouped in per-entity directories.
// Writes are best effort: no cross-file atomicity.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/flowdesk/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root         string
	flowRepo     *FlowRepository
	runRepo      *RunRepository
	actorRepo    *ActorRepository
	auditRepo    *AuditRepository
	scheduleRepo *ScheduleRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		flowRepo:     &FlowRepository{root: cleanRoot},
		runRepo:      &RunRepository{root: cleanRoot},
		actorRepo:    &ActorRepository{root: cleanRoot},
		auditRepo:    &AuditRepository{root: cleanRoot},
		scheduleRepo: &ScheduleRepository{root: cleanRoot},
	}
}

// Close performs any necessary cleanup. Nothing to clean up for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p.flowRepo
}

func (p *Persistence) RunRepository() persistence.RunRepository {
	return p.runRepo
}

func (p *Persistence) ActorRepository() persistence.ActorRepository {
	return p.actorRepo
}

func (p *Persistence) AuditRepository() persistence.AuditRepository {
	return p.auditRepo
}

func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return p.scheduleRepo
}

func writeDocument(root, collection, id string, value any) error {
	dir := filepath.Join(root, collection)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", collection, err)
	}

	err = os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s document: %w", collection, err)
	}

	return nil
}

// readDocument loads one document; notFound is returned verbatim when the
// file does not exist.
func readDocument(root, collection, id string, value any, notFound error) error {
	data, err := os.ReadFile(filepath.Join(root, collection, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return notFound
		}

		return fmt.Errorf("failed to read %s document: %w", collection, err)
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s document: %w", collection, err)
	}

	return nil
}

// readCollection loads every document of a collection. A missing directory
// is an empty collection.
func readCollection(root, collection string, load func(data []byte) error) error {
	dir := filepath.Join(root, collection)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to list %s directory: %w", collection, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s document: %w", collection, err)
		}

		if err := load(data); err != nil {
			return err
		}
	}

	return nil
}
