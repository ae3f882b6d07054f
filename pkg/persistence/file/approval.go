package file

import (
	"context"
	"errors"
	"time"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
)

const approvalsCollection = "approvals"

// approvalRecord keeps the token on disk; the model hides it from JSON responses.
type approvalRecord struct {
	models.ApprovalRequest

	Token string `json:"token"`
}

func (r approvalRecord) request() *models.ApprovalRequest {
	request := r.ApprovalRequest
	request.Token = r.Token

	return &request
}

// ApprovalRepository stores approval requests keyed by token.
type ApprovalRepository struct {
	store *store
}

func (ar *ApprovalRepository) Create(_ context.Context, request *models.ApprovalRequest) error {
	ar.store.mu.Lock()
	defer ar.store.mu.Unlock()

	return ar.store.write(approvalsCollection, request.Token, approvalRecord{ApprovalRequest: *request, Token: request.Token})
}

func (ar *ApprovalRepository) FindPendingByToken(
	_ context.Context,
	token string,
	now time.Time,
) (*models.ApprovalRequest, error) {
	ar.store.mu.RLock()
	defer ar.store.mu.RUnlock()

	record, err := ar.pending(token, now)
	if err != nil {
		return nil, err
	}

	return record.request(), nil
}

func (ar *ApprovalRepository) Respond(
	_ context.Context,
	response models.ApprovalResponse,
) (*models.ApprovalRequest, error) {
	ar.store.mu.Lock()
	defer ar.store.mu.Unlock()

	record, err := ar.pending(response.Token, response.At)
	if err != nil {
		return nil, err
	}

	respondedAt := response.At
	record.Status = response.Status
	record.RespondedAt = &respondedAt
	record.RespondedBy = response.RespondedBy
	record.Comment = response.Comment

	err = ar.store.write(approvalsCollection, response.Token, record)
	if err != nil {
		return nil, err
	}

	return record.request(), nil
}

func (ar *ApprovalRepository) DeleteExpiredPending(_ context.Context, now time.Time) (int64, error) {
	ar.store.mu.Lock()
	defer ar.store.mu.Unlock()

	tokens, err := ar.store.ids(approvalsCollection)
	if err != nil {
		return 0, err
	}

	var deleted int64

	for _, token := range tokens {
		var record approvalRecord

		err := ar.store.read(approvalsCollection, token, &record)
		if err != nil {
			return deleted, err
		}

		if record.Status == models.ApprovalStatusPending && record.IsExpired(now) {
			err := ar.store.remove(approvalsCollection, token)
			if err != nil {
				return deleted, err
			}

			deleted++
		}
	}

	return deleted, nil
}

func (ar *ApprovalRepository) pending(token string, now time.Time) (*approvalRecord, error) {
	var record approvalRecord

	err := ar.store.read(approvalsCollection, token, &record)
	if errors.Is(err, errNotExist) {
		return nil, persistence.ErrApprovalNotFound
	}

	if err != nil {
		return nil, err
	}

	if record.Status != models.ApprovalStatusPending {
		return nil, persistence.ErrApprovalNotFound
	}

	if record.IsExpired(now) {
		return nil, persistence.ErrApprovalExpired
	}

	return &record, nil
}
