package models

import (
	"errors"
	"fmt"
	"time"
)

// ExecutionStatus is the lifecycle state of a workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending         ExecutionStatus = "pending"
	ExecutionStatusRunning         ExecutionStatus = "running"
	ExecutionStatusWaitingApproval ExecutionStatus = "waiting_approval"
	ExecutionStatusCompleted       ExecutionStatus = "completed"
	ExecutionStatusFailed          ExecutionStatus = "failed"
	ExecutionStatusStopped         ExecutionStatus = "stopped"
)

// Well-known keys of the execution context.
const (
	ContextKeySubmission      = "submission"
	ContextKeyForm            = "form"
	ContextKeyUser            = "user"
	ContextKeyLastAPIResponse = "last_api_response"
)

// Branch names carried by StepOutcome and matched against Edge.SourceHandle.
const (
	BranchTrue  = "true"
	BranchFalse = "false"
)

var ErrInvalidTransition = errors.New("invalid execution status transition")

var allowedTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionStatusPending: {
		ExecutionStatusRunning,
		ExecutionStatusCompleted,
		ExecutionStatusFailed,
		ExecutionStatusStopped,
	},
	ExecutionStatusRunning: {
		ExecutionStatusRunning,
		ExecutionStatusWaitingApproval,
		ExecutionStatusCompleted,
		ExecutionStatusFailed,
		ExecutionStatusStopped,
	},
	ExecutionStatusWaitingApproval: {
		ExecutionStatusRunning,
		ExecutionStatusFailed,
		ExecutionStatusStopped,
	},
}

// IsTerminal reports whether no further transition is possible.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusStopped:
		return true
	default:
		return false
	}
}

// CanTransition reports whether an execution may move from one status to another.
func CanTransition(from, to ExecutionStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// LogEntry is one line of the execution history shown to administrators.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// StepOutcome is what a step executor reports back to the driver.
type StepOutcome struct {
	Success      bool   `json:"success"`
	Branch       string `json:"branch,omitempty"`
	DelaySeconds int    `json:"delay_seconds,omitempty"`
	Wait         bool   `json:"wait,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Execution is one run of a workflow for one submission. Step counts the
// scheduled steps so that duplicated deliveries of an old step can be discarded.
type Execution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	SubmissionID  string          `json:"submission_id,omitempty"`
	CurrentNodeID string          `json:"current_node_id,omitempty"`
	Step          int             `json:"step"`
	Status        ExecutionStatus `json:"status"`
	Context       map[string]any  `json:"context"`
	Logs          []LogEntry      `json:"logs"`
	LastOutcome   *StepOutcome    `json:"last_outcome,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// AppendLog adds a timestamped entry to the execution history.
func (e *Execution) AppendLog(message string, data map[string]any) {
	e.Logs = append(e.Logs, LogEntry{
		Timestamp: time.Now().UTC(),
		Message:   message,
		Data:      data,
	})
}

// Transition moves the execution to status to, stamping CompletedAt on terminal states.
func (e *Execution) Transition(to ExecutionStatus) error {
	if !CanTransition(e.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
	}

	e.Status = to

	if to.IsTerminal() {
		now := time.Now().UTC()
		e.CompletedAt = &now
	}

	return nil
}
