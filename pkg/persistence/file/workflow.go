package file

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
)

const (
	workflowsCollection = "workflows"
	versionsCollection  = "workflow_versions"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	store *store
}

func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	var workflow models.Workflow

	err := wr.store.read(workflowsCollection, id, &workflow)
	if errors.Is(err, errNotExist) {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) GetActive(
	_ context.Context,
	formID string,
	triggerOn models.TriggerOn,
) ([]*models.Workflow, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	ids, err := wr.store.ids(workflowsCollection)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0)

	for _, id := range ids {
		var workflow models.Workflow

		err := wr.store.read(workflowsCollection, id, &workflow)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		if workflow.Active && workflow.TriggerOn == triggerOn && workflow.AppliesToForm(formID) {
			workflows = append(workflows, &workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	return wr.store.write(workflowsCollection, workflow.ID, workflow)
}

func (wr *WorkflowRepository) SaveVersion(_ context.Context, version *models.WorkflowVersion) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	return wr.store.write(versionsCollection, versionKey(version.WorkflowID, version.Version), version)
}

func (wr *WorkflowRepository) Versions(_ context.Context, workflowID string) ([]*models.WorkflowVersion, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	return wr.versions(workflowID)
}

func (wr *WorkflowRepository) PruneVersions(_ context.Context, workflowID string, keep int) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	versions, err := wr.versions(workflowID)
	if err != nil {
		return err
	}

	if len(versions) <= keep {
		return nil
	}

	for _, version := range versions[keep:] {
		err := wr.store.remove(versionsCollection, versionKey(workflowID, version.Version))
		if err != nil {
			return err
		}
	}

	return nil
}

// versions returns the snapshots of a workflow, newest first.
func (wr *WorkflowRepository) versions(workflowID string) ([]*models.WorkflowVersion, error) {
	ids, err := wr.store.ids(versionsCollection)
	if err != nil {
		return nil, err
	}

	versions := make([]*models.WorkflowVersion, 0)

	for _, id := range ids {
		var version models.WorkflowVersion

		err := wr.store.read(versionsCollection, id, &version)
		if err != nil {
			return nil, err
		}

		if version.WorkflowID == workflowID {
			versions = append(versions, &version)
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version > versions[j].Version
	})

	return versions, nil
}

func versionKey(workflowID string, version int) string {
	return workflowID + "@" + strconv.Itoa(version)
}
