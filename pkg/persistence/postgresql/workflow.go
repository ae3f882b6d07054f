package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const workflowColumns = `
	id
  , name
  , description
  , form_id
  , form_ids
  , trigger_on
  , active
  , version
  , nodes
  , edges
  , created_at
  , updated_at
`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	workflow, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) GetActive(
	ctx context.Context,
	formID string,
	triggerOn models.TriggerOn,
) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE active
		  AND trigger_on = $2
		  AND (
			form_id = $1
			OR (COALESCE(form_id, '') = '' AND $1 = ANY(form_ids))
		  )
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, formID, string(triggerOn))
	if err != nil {
		return nil, fmt.Errorf("failed to query active workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// Save upserts a workflow, assigning an ID and timestamps when missing.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	nodes, err := marshalJSON("nodes", workflow.Nodes)
	if err != nil {
		return err
	}

	edges, err := marshalJSON("edges", workflow.Edges)
	if err != nil {
		return err
	}

	formIDs := workflow.FormIDs
	if formIDs == nil {
		formIDs = []string{}
	}

	query := `
		INSERT INTO workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , form_id = EXCLUDED.form_id
		  , form_ids = EXCLUDED.form_ids
		  , trigger_on = EXCLUDED.trigger_on
		  , active = EXCLUDED.active
		  , version = EXCLUDED.version
		  , nodes = EXCLUDED.nodes
		  , edges = EXCLUDED.edges
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.FormID,
		pq.Array(formIDs),
		string(workflow.TriggerOn),
		workflow.Active,
		workflow.Version,
		nodes,
		edges,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) SaveVersion(ctx context.Context, version *models.WorkflowVersion) error {
	nodes, err := marshalJSON("nodes", version.Nodes)
	if err != nil {
		return err
	}

	edges, err := marshalJSON("edges", version.Edges)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_versions (workflow_id, version, nodes, edges, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workflow_id, version) DO NOTHING
	`

	_, err = r.db.ExecContext(ctx, query, version.WorkflowID, version.Version, nodes, edges, version.CreatedAt)
	if err != nil {
		return persistence.NewWorkflowError("SaveVersion", version.WorkflowID, err)
	}

	return nil
}

func (r *WorkflowRepository) Versions(ctx context.Context, workflowID string) ([]*models.WorkflowVersion, error) {
	query := `
		SELECT workflow_id, version, nodes, edges, created_at
		FROM workflow_versions
		WHERE workflow_id = $1
		ORDER BY version DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow versions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	versions := make([]*models.WorkflowVersion, 0)

	for rows.Next() {
		var (
			version      models.WorkflowVersion
			nodes, edges []byte
		)

		err := rows.Scan(&version.WorkflowID, &version.Version, &nodes, &edges, &version.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow version: %w", err)
		}

		err = unmarshalJSON("nodes", nodes, &version.Nodes)
		if err != nil {
			return nil, err
		}

		err = unmarshalJSON("edges", edges, &version.Edges)
		if err != nil {
			return nil, err
		}

		versions = append(versions, &version)
	}

	return versions, rows.Err()
}

func (r *WorkflowRepository) PruneVersions(ctx context.Context, workflowID string, keep int) error {
	query := `
		DELETE FROM workflow_versions
		WHERE workflow_id = $1
		  AND version NOT IN (
			SELECT version FROM workflow_versions
			WHERE workflow_id = $1
			ORDER BY version DESC
			LIMIT $2
		  )
	`

	_, err := r.db.ExecContext(ctx, query, workflowID, keep)
	if err != nil {
		return persistence.NewWorkflowError("PruneVersions", workflowID, err)
	}

	return nil
}

func (r *WorkflowRepository) scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow     models.Workflow
		formID       sql.NullString
		formIDs      pq.StringArray
		triggerOn    string
		nodes, edges []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&formID,
		&formIDs,
		&triggerOn,
		&workflow.Active,
		&workflow.Version,
		&nodes,
		&edges,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if formID.Valid {
		workflow.FormID = &formID.String
	}

	workflow.FormIDs = formIDs
	workflow.TriggerOn = models.TriggerOn(triggerOn)

	err = unmarshalJSON("nodes", nodes, &workflow.Nodes)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSON("edges", edges, &workflow.Edges)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}
