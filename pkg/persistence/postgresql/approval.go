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
)

const approvalColumns = `
	id
  , execution_id
  , node_id
  , token
  , approver_email
  , subject
  , message
  , status
  , expires_at
  , responded_at
  , responded_by
  , comment
  , created_at
`

// ApprovalRepository stores approval requests. Token state changes are single guarded statements.
type ApprovalRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewApprovalRepository(db *sql.DB, logger *slog.Logger) *ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

func (r *ApprovalRepository) Create(ctx context.Context, request *models.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (` + approvalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.ExecutionID,
		request.NodeID,
		request.Token,
		request.ApproverEmail,
		request.Subject,
		request.Message,
		string(request.Status),
		request.ExpiresAt,
		request.RespondedAt,
		request.RespondedBy,
		request.Comment,
		request.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert approval request for execution %s: %w", request.ExecutionID, err)
	}

	return nil
}

func (r *ApprovalRepository) FindPendingByToken(
	ctx context.Context,
	token string,
	now time.Time,
) (*models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE token = $1 AND status = 'pending'`

	request, err := scanApproval(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrApprovalNotFound
		}

		return nil, fmt.Errorf("failed to scan approval request: %w", err)
	}

	if request.IsExpired(now) {
		return nil, persistence.ErrApprovalExpired
	}

	return request, nil
}

func (r *ApprovalRepository) Respond(
	ctx context.Context,
	response models.ApprovalResponse,
) (*models.ApprovalRequest, error) {
	query := `
		UPDATE approval_requests SET
			status = $2
		  , responded_at = $3
		  , responded_by = $4
		  , comment = $5
		WHERE token = $1
		  AND status = 'pending'
		  AND expires_at > $3
		RETURNING ` + approvalColumns

	request, err := scanApproval(r.db.QueryRowContext(ctx, query,
		response.Token,
		string(response.Status),
		response.At,
		response.RespondedBy,
		response.Comment,
	))
	if err == nil {
		return request, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update approval request: %w", err)
	}

	// Nothing matched: tell an expired pending token apart from an unknown or answered one.
	var expired bool

	err = r.db.QueryRowContext(ctx,
		`SELECT expires_at <= $2 FROM approval_requests WHERE token = $1 AND status = 'pending'`,
		response.Token, response.At,
	).Scan(&expired)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !expired) {
		return nil, persistence.ErrApprovalNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to inspect approval request: %w", err)
	}

	return nil, persistence.ErrApprovalExpired
}

func (r *ApprovalRepository) DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM approval_requests WHERE status = 'pending' AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired approval requests: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted approval requests: %w", err)
	}

	return deleted, nil
}

func scanApproval(row scanner) (*models.ApprovalRequest, error) {
	var (
		request     models.ApprovalRequest
		status      string
		respondedAt sql.NullTime
	)

	err := row.Scan(
		&request.ID,
		&request.ExecutionID,
		&request.NodeID,
		&request.Token,
		&request.ApproverEmail,
		&request.Subject,
		&request.Message,
		&status,
		&request.ExpiresAt,
		&respondedAt,
		&request.RespondedBy,
		&request.Comment,
		&request.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	request.Status = models.ApprovalStatus(status)

	if respondedAt.Valid {
		request.RespondedAt = &respondedAt.Time
	}

	return &request, nil
}
