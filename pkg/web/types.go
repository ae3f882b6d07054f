package web

import "github.com/dukex/formflow/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string           `json:"name"                validate:"required,min=3"`
	Description string           `json:"description"`
	FormID      *string          `json:"form_id,omitempty"`
	FormIDs     []string         `json:"form_ids,omitempty"`
	TriggerOn   models.TriggerOn `json:"trigger_on"          validate:"required,oneof=submission approval manual"`
	Active      bool             `json:"active"`
	Nodes       []*models.Node   `json:"nodes"               validate:"required,min=1"`
	Edges       []*models.Edge   `json:"edges"`
}

// UpdateGraphRequest replaces the nodes and edges of a workflow.
type UpdateGraphRequest struct {
	Nodes []*models.Node `json:"nodes" validate:"required,min=1"`
	Edges []*models.Edge `json:"edges"`
}

// TestWorkflowRequest carries the sample submission data of a dry run.
type TestWorkflowRequest struct {
	Data map[string]any `json:"data"`
}

// StartExecutionRequest starts a workflow by hand, optionally for a stored submission.
type StartExecutionRequest struct {
	SubmissionID string `json:"submission_id,omitempty"`
}

// SubmitRequest stores a submission and triggers the workflows of its form.
type SubmitRequest struct {
	FormID string         `json:"form_id" validate:"required"`
	Form   *models.Form   `json:"form,omitempty"`
	Data   map[string]any `json:"data"    validate:"required"`
	User   *models.User   `json:"user,omitempty"`
}

// StopExecutionRequest names who stopped the execution.
type StopExecutionRequest struct {
	StoppedBy string `json:"stopped_by" validate:"omitempty,max=255"`
}

// ApprovalDecisionRequest is the approver's answer. Comment is sanitized before storage.
type ApprovalDecisionRequest struct {
	RespondedBy string `json:"responded_by" validate:"omitempty,max=255"`
	Comment     string `json:"comment"      validate:"max=2000"`
}

// TriggerResponse lists the executions a submission started.
type TriggerResponse struct {
	SubmissionID string   `json:"submission_id"`
	ExecutionIDs []string `json:"execution_ids"`
	Errors       []string `json:"errors,omitempty"`
}

func executionIDs(executions []*models.Execution) []string {
	ids := make([]string, 0, len(executions))
	for _, exec := range executions {
		ids = append(ids, exec.ID)
	}

	return ids
}
