package services

import (
	"context"
	"fmt"
)

// Activate makes a workflow eligible for triggering after checking it is still valid.
func (w *Workflow) Activate(ctx context.Context, workflowID string) error {
	workflow, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if err := w.Validate(workflow); err != nil {
		return fmt.Errorf("workflow validation failed: %w", err)
	}

	return w.setActive(ctx, workflowID, true)
}

// Deactivate stops new executions of a workflow. Running executions are not affected.
func (w *Workflow) Deactivate(ctx context.Context, workflowID string) error {
	return w.setActive(ctx, workflowID, false)
}

// RequireActive returns ErrWorkflowInactive unless the workflow can be triggered.
func (w *Workflow) RequireActive(ctx context.Context, workflowID string) error {
	workflow, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if !workflow.Active {
		return fmt.Errorf("%w: %s", ErrWorkflowInactive, workflowID)
	}

	return nil
}

func (w *Workflow) setActive(ctx context.Context, workflowID string, active bool) error {
	workflow, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if workflow.Active == active {
		return nil
	}

	workflow.Active = active
	workflow.UpdatedAt = w.now()

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "workflow activation changed", "workflow_id", workflowID, "active", active)

	return nil
}
