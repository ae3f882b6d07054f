// Package persistence provides the storage abstraction for workflows, executions and approvals.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/formflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	ApprovalRepository() ApprovalRepository
	SubmissionRepository() SubmissionRepository
	TemplateRepository() TemplateRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// GetActive returns active workflows that listen to formID for the given trigger,
	// bound ones as well as global ones listing the form.
	GetActive(ctx context.Context, formID string, triggerOn models.TriggerOn) ([]*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	SaveVersion(ctx context.Context, version *models.WorkflowVersion) error
	Versions(ctx context.Context, workflowID string) ([]*models.WorkflowVersion, error)
	// PruneVersions deletes all but the newest keep snapshots.
	PruneVersions(ctx context.Context, workflowID string, keep int) error
}

type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	// Update persists the execution. It returns ErrExecutionStopped, without
	// writing, when the stored row was stopped and the update is not itself a stop.
	Update(ctx context.Context, execution *models.Execution) error
}

type ApprovalRepository interface {
	Create(ctx context.Context, request *models.ApprovalRequest) error
	// FindPendingByToken returns ErrApprovalNotFound for unknown or answered tokens
	// and ErrApprovalExpired for pending ones past their expiry.
	FindPendingByToken(ctx context.Context, token string, now time.Time) (*models.ApprovalRequest, error)
	// Respond transitions a pending, unexpired request in one guarded statement.
	Respond(ctx context.Context, response models.ApprovalResponse) (*models.ApprovalRequest, error)
	DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error)
}

type SubmissionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	Save(ctx context.Context, submission *models.Submission) error
}

type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*models.EmailTemplate, error)
	Save(ctx context.Context, template *models.EmailTemplate) error
}
