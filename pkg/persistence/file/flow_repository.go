package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/flowdesk/pkg/models"
	"github.com/dukex/flowdesk/pkg/persistence"
	"github.com/google/uuid"
)

const flowsCollection = "flows"

// FlowRepository stores flow templates as JSON files.
type FlowRepository struct {
	root string
}

func (r *FlowRepository) Flows(ctx context.Context) ([]*models.Flow, error) {
	flows := make([]*models.Flow, 0)

	err := readCollection(r.root, flowsCollection, func(data []byte) error {
		var flow models.Flow
		if err := json.Unmarshal(data, &flow); err != nil {
			return fmt.Errorf("failed to unmarshal flow: %w", err)
		}

		if flow.DeletedAt == nil {
			flows = append(flows, &flow)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(flows, func(i, j int) bool {
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})

	return flows, nil
}

func (r *FlowRepository) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	var flow models.Flow

	err := readDocument(r.root, flowsCollection, id, &flow,
		persistence.NewFlowError("FlowByID", id, persistence.ErrFlowNotFound))
	if err != nil {
		return nil, err
	}

	if flow.DeletedAt != nil {
		return nil, persistence.NewFlowError("FlowByID", id, persistence.ErrFlowNotFound)
	}

	return &flow, nil
}

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

	return writeDocument(r.root, flowsCollection, flow.ID, flow)
}

func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	flow, err := r.FlowByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	flow.DeletedAt = &now

	return writeDocument(r.root, flowsCollection, flow.ID, flow)
}
