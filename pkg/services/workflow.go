package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/dukex/formflow/pkg/schema"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

type Workflow struct {
	persistence persistence.Persistence
	validate    *validator.Validate
	schemas     *schema.Registry
	now         func() time.Time
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(
	persistence persistence.Persistence,
	validate *validator.Validate,
	schemas *schema.Registry,
	logger *slog.Logger,
) *Workflow {
	return &Workflow{
		persistence: persistence,
		validate:    validate,
		schemas:     schemas,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// Create validates and stores a new workflow at version 1 together with its first snapshot.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if err := w.Validate(workflow); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate workflow ID: %w", err)
	}

	now := w.now()
	workflow.ID = id.String()
	workflow.Version = 1
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	if err := w.snapshot(ctx, workflow); err != nil {
		return nil, err
	}

	w.logger.InfoContext(ctx, "workflow created", "workflow_id", workflow.ID, "nodes", len(workflow.Nodes))

	return workflow, nil
}

// Update replaces the editable attributes of a workflow. The version is bumped and
// a snapshot written only when the graph changed.
func (w *Workflow) Update(ctx context.Context, workflowID string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if err := w.Validate(workflow); err != nil {
		return nil, err
	}

	workflow.ID = workflowID
	workflow.Version = existing.Version
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = w.now()

	graphChanged := !sameGraph(existing, workflow)
	if graphChanged {
		workflow.Version++
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	if graphChanged {
		if err := w.snapshot(ctx, workflow); err != nil {
			return nil, err
		}
	}

	return workflow, nil
}

// UpdateGraph replaces only the nodes and edges of a workflow.
func (w *Workflow) UpdateGraph(
	ctx context.Context,
	workflowID string,
	nodes []*models.Node,
	edges []*models.Edge,
) (*models.Workflow, error) {
	existing, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Nodes = nodes
	updated.Edges = edges

	return w.Update(ctx, workflowID, &updated)
}

// Versions lists the retained snapshots of a workflow, newest first.
func (w *Workflow) Versions(ctx context.Context, workflowID string) ([]*models.WorkflowVersion, error) {
	if _, err := w.FetchByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return w.persistence.WorkflowRepository().Versions(ctx, workflowID)
}

// Validate checks struct tags, graph structure and the data of every node.
func (w *Workflow) Validate(workflow *models.Workflow) error {
	if workflow == nil {
		return ErrWorkflowNil
	}

	if err := w.validate.Struct(workflow); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return NewValidationError("validate", "INVALID_WORKFLOW", invalid.Error(), ErrInvalidRequest)
		}

		return err
	}

	if err := ValidateGraph(workflow); err != nil {
		return err
	}

	for _, node := range workflow.Nodes {
		if err := w.schemas.ValidateNode(node); err != nil {
			return NewValidationError("validate", "INVALID_NODE_DATA", err.Error(), ErrInvalidNodeData)
		}
	}

	return nil
}

// ValidateGraph requires exactly one start node, unique node ids and edges
// between existing nodes.
func ValidateGraph(workflow *models.Workflow) error {
	if len(workflow.Nodes) == 0 {
		return ErrNodesRequired
	}

	ids := make(map[string]bool, len(workflow.Nodes))
	starts := 0

	for _, node := range workflow.Nodes {
		if ids[node.ID] {
			return NewValidationError("validateGraph", "DUPLICATE_NODE", fmt.Sprintf("node %q is declared twice", node.ID), ErrDuplicateNodeID)
		}

		ids[node.ID] = true

		if node.Type == models.NodeTypeStart {
			starts++
		}
	}

	if starts != 1 {
		return NewValidationError("validateGraph", "START_NODE", fmt.Sprintf("found %d start nodes", starts), ErrStartNodeRequired)
	}

	for _, edge := range workflow.Edges {
		if !ids[edge.Source] || !ids[edge.Target] {
			return NewValidationError(
				"validateGraph",
				"DANGLING_EDGE",
				fmt.Sprintf("edge %s -> %s", edge.Source, edge.Target),
				ErrDanglingEdge,
			)
		}
	}

	return nil
}

func (w *Workflow) snapshot(ctx context.Context, workflow *models.Workflow) error {
	repo := w.persistence.WorkflowRepository()

	if err := repo.SaveVersion(ctx, workflow.Snapshot(w.now())); err != nil {
		return fmt.Errorf("failed to save version %d of workflow %s: %w", workflow.Version, workflow.ID, err)
	}

	if err := repo.PruneVersions(ctx, workflow.ID, models.MaxRetainedVersions); err != nil {
		w.logger.WarnContext(ctx, "failed to prune workflow versions", "workflow_id", workflow.ID, "error", err)
	}

	return nil
}

func sameGraph(a, b *models.Workflow) bool {
	left, errA := json.Marshal(struct {
		Nodes []*models.Node
		Edges []*models.Edge
	}{a.Nodes, a.Edges})

	right, errB := json.Marshal(struct {
		Nodes []*models.Node
		Edges []*models.Edge
	}{b.Nodes, b.Edges})

	return errA == nil && errB == nil && bytes.Equal(left, right)
}
