// Package events defines the messages exchanged between the API and the workers.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every formflow event. Messages are keyed by execution id.
const Topic = "formflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	StepScheduledEvent     EventType = "execution.step.scheduled"
	ExecutionFinishedEvent EventType = "execution.finished"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	WorkerID   string    `json:"worker_id,omitempty"`
}

// StepScheduled asks a worker to run the node an execution currently points to.
// Step is the execution step counter at scheduling time; stale deliveries are dropped.
// A non-empty Action replays an approval decision ("resume" or "reject", with
// Reason) instead of running a node. Attempt counts failed deliveries.
type StepScheduled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Step        int    `json:"step"`
	Action      string `json:"action,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Attempt     int    `json:"attempt,omitempty"`
}

func (s StepScheduled) GetType() EventType {
	return StepScheduledEvent
}

// ExecutionFinished is published once an execution reaches a terminal status.
type ExecutionFinished struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	SubmissionID string `json:"submission_id,omitempty"`
	Status       string `json:"status"`
	DurationMs   int64  `json:"duration_ms"`
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}
