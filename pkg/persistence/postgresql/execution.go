package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
)

// ExecutionRepository handles workflow execution rows.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	values, err := executionValues(execution)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_executions (
			id, workflow_id, submission_id, current_node_id, step, status,
			context, logs, last_outcome, started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query, values...)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , COALESCE(submission_id, '')
		  , COALESCE(current_node_id, '')
		  , step
		  , status
		  , context
		  , logs
		  , last_outcome
		  , started_at
		  , completed_at
		FROM workflow_executions
		WHERE id = $1
	`

	var (
		execution                  models.Execution
		status                     string
		contextJSON, logs, outcome []byte
		completedAt                sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.SubmissionID,
		&execution.CurrentNodeID,
		&execution.Step,
		&status,
		&contextJSON,
		&logs,
		&outcome,
		&execution.StartedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	execution.Status = models.ExecutionStatus(status)

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	err = unmarshalJSON("context", contextJSON, &execution.Context)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSON("logs", logs, &execution.Logs)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSON("last_outcome", outcome, &execution.LastOutcome)
	if err != nil {
		return nil, err
	}

	return &execution, nil
}

// Update writes the execution unless the stored row was stopped in the meantime.
func (r *ExecutionRepository) Update(ctx context.Context, execution *models.Execution) error {
	values, err := executionValues(execution)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_executions SET
			workflow_id = $2
		  , submission_id = $3
		  , current_node_id = $4
		  , step = $5
		  , status = $6
		  , context = $7
		  , logs = $8
		  , last_outcome = $9
		  , started_at = $10
		  , completed_at = $11
		WHERE id = $1
		  AND (status <> 'stopped' OR $6 = 'stopped')
	`

	result, err := r.db.ExecContext(ctx, query, values...)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	if affected > 0 {
		return nil
	}

	var status string

	err = r.db.QueryRowContext(ctx, `SELECT status FROM workflow_executions WHERE id = $1`, execution.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionStopped)
}

func executionValues(execution *models.Execution) ([]any, error) {
	if execution.Context == nil {
		execution.Context = make(map[string]any)
	}

	if execution.Logs == nil {
		execution.Logs = make([]models.LogEntry, 0)
	}

	contextJSON, err := marshalJSON("context", execution.Context)
	if err != nil {
		return nil, err
	}

	logs, err := marshalJSON("logs", execution.Logs)
	if err != nil {
		return nil, err
	}

	var outcome any
	if execution.LastOutcome != nil {
		outcome, err = marshalJSON("last_outcome", execution.LastOutcome)
		if err != nil {
			return nil, err
		}
	}

	return []any{
		execution.ID,
		execution.WorkflowID,
		nullString(execution.SubmissionID),
		nullString(execution.CurrentNodeID),
		execution.Step,
		string(execution.Status),
		contextJSON,
		logs,
		outcome,
		execution.StartedAt,
		execution.CompletedAt,
	}, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
