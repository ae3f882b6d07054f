// Package approval manages the single-use tokens that gate workflow executions on a human decision.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/formflow/pkg/audit"
	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

var (
	// ErrTokenNotFound is returned for unknown tokens and tokens that were already used.
	ErrTokenNotFound = errors.New("approval token not found")
	ErrTokenExpired  = errors.New("approval token expired")
)

// Continuer moves an execution on once its approval was decided.
type Continuer interface {
	ContinueExecution(ctx context.Context, executionID string) error
	RejectExecution(ctx context.Context, executionID, reason string) error
}

// CreateRequest describes the approval an approval node asks for.
type CreateRequest struct {
	ExecutionID   string
	NodeID        string
	ApproverEmail string
	Subject       string
	Message       string
}

// Decision is the approver's answer.
type Decision struct {
	RespondedBy string
	Comment     string
}

type Service struct {
	repo      persistence.ApprovalRepository
	continuer Continuer
	audit     audit.Sink
	sanitizer *bluemonday.Policy
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(repo persistence.ApprovalRepository, sink audit.Sink, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		audit:     sink,
		sanitizer: bluemonday.StrictPolicy(),
		ttl:       models.ApprovalTokenTTL,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With("module", "approval"),
	}
}

// SetContinuer wires the execution driver. The driver itself depends on the
// service to create requests, so the link is made after both exist.
func (s *Service) SetContinuer(continuer Continuer) {
	s.continuer = continuer
}

// Create stores a pending request with a fresh token valid for seven days.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.ApprovalRequest, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate approval ID: %w", err)
	}

	now := s.now()
	request := &models.ApprovalRequest{
		ID:            id.String(),
		ExecutionID:   req.ExecutionID,
		NodeID:        req.NodeID,
		Token:         token,
		ApproverEmail: req.ApproverEmail,
		Subject:       req.Subject,
		Message:       req.Message,
		Status:        models.ApprovalStatusPending,
		ExpiresAt:     now.Add(s.ttl),
		CreatedAt:     now,
	}

	err = s.repo.Create(ctx, request)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "approval requested",
		"approval_id", request.ID,
		"execution_id", request.ExecutionID,
		"node_id", request.NodeID,
	)

	return request, nil
}

// Find returns the pending request behind token.
func (s *Service) Find(ctx context.Context, token string) (*models.ApprovalRequest, error) {
	if !validTokenShape(token) {
		return nil, ErrTokenNotFound
	}

	request, err := s.repo.FindPendingByToken(ctx, token, s.now())
	if err != nil {
		return nil, s.mapError(ctx, token, "view", err)
	}

	return request, nil
}

// Approve records the approval and resumes the execution.
func (s *Service) Approve(ctx context.Context, token string, decision Decision) (*models.ApprovalRequest, error) {
	request, err := s.respond(ctx, token, models.ApprovalStatusApproved, decision)
	if err != nil {
		return nil, err
	}

	err = s.continuer.ContinueExecution(ctx, request.ExecutionID)
	if err != nil {
		return request, fmt.Errorf("failed to continue execution %s: %w", request.ExecutionID, err)
	}

	return request, nil
}

// Reject records the rejection and ends the execution without resuming it.
func (s *Service) Reject(ctx context.Context, token string, decision Decision) (*models.ApprovalRequest, error) {
	request, err := s.respond(ctx, token, models.ApprovalStatusRejected, decision)
	if err != nil {
		return nil, err
	}

	reason := "rejected by " + request.ApproverEmail
	if request.Comment != "" {
		reason += ": " + request.Comment
	}

	err = s.continuer.RejectExecution(ctx, request.ExecutionID, reason)
	if err != nil {
		return request, fmt.Errorf("failed to reject execution %s: %w", request.ExecutionID, err)
	}

	return request, nil
}

// Cleanup deletes pending requests past their expiry.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpiredPending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired approvals: %w", err)
	}

	s.logger.InfoContext(ctx, "expired approvals removed", "count", deleted)

	return deleted, nil
}

func (s *Service) respond(
	ctx context.Context,
	token string,
	status models.ApprovalStatus,
	decision Decision,
) (*models.ApprovalRequest, error) {
	if !validTokenShape(token) {
		return nil, ErrTokenNotFound
	}

	request, err := s.repo.Respond(ctx, models.ApprovalResponse{
		Token:       token,
		Status:      status,
		RespondedBy: decision.RespondedBy,
		Comment:     strings.TrimSpace(s.sanitizer.Sanitize(decision.Comment)),
		At:          s.now(),
	})
	if err != nil {
		return nil, s.mapError(ctx, token, string(status), err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:      "approval." + string(status),
		SubjectType: "approval_request",
		SubjectID:   request.ID,
		OldValues:   map[string]any{"status": string(models.ApprovalStatusPending)},
		NewValues:   map[string]any{"status": string(status), "comment": request.Comment},
		Metadata: map[string]any{
			"execution_id": request.ExecutionID,
			"node_id":      request.NodeID,
			"responded_by": request.RespondedBy,
		},
	})

	return request, nil
}

func (s *Service) mapError(ctx context.Context, token, action string, err error) error {
	switch {
	case errors.Is(err, persistence.ErrApprovalExpired):
		s.audit.Log(ctx, audit.Entry{
			Action:      "approval.expired_attempt",
			SubjectType: "approval_request",
			SubjectID:   tokenPrefix(token),
			Metadata:    map[string]any{"action": action},
		})

		return ErrTokenExpired
	case errors.Is(err, persistence.ErrApprovalNotFound):
		return ErrTokenNotFound
	default:
		return err
	}
}

func validTokenShape(token string) bool {
	if len(token) != TokenLength {
		return false
	}

	for i := 0; i < len(token); i++ {
		if !strings.ContainsRune(tokenAlphabet, rune(token[i])) {
			return false
		}
	}

	return true
}

// tokenPrefix identifies a token in audit records without disclosing it.
func tokenPrefix(token string) string {
	if len(token) < 8 {
		return token
	}

	return token[:8] + "..."
}
