package models

import "time"

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// ApprovalTokenTTL is how long an approval link stays valid.
const ApprovalTokenTTL = 7 * 24 * time.Hour

// ApprovalRequest is a pending human decision for an execution paused at an approval node.
type ApprovalRequest struct {
	ID            string         `json:"id"`
	ExecutionID   string         `json:"execution_id"`
	NodeID        string         `json:"node_id"`
	Token         string         `json:"-"`
	ApproverEmail string         `json:"approver_email"`
	Subject       string         `json:"subject,omitempty"`
	Message       string         `json:"message,omitempty"`
	Status        ApprovalStatus `json:"status"`
	ExpiresAt     time.Time      `json:"expires_at"`
	RespondedAt   *time.Time     `json:"responded_at,omitempty"`
	RespondedBy   string         `json:"responded_by,omitempty"`
	Comment       string         `json:"comment,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// IsExpired reports whether the request can no longer be answered at now.
func (a *ApprovalRequest) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// ApprovalResponse carries a decision on an approval request.
type ApprovalResponse struct {
	Token       string
	Status      ApprovalStatus
	RespondedBy string
	Comment     string
	At          time.Time
}
