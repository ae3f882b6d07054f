package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/formflow/pkg/delayqueue"
	"github.com/dukex/formflow/pkg/eventbus"
	"github.com/dukex/formflow/pkg/events"
	"github.com/dukex/formflow/pkg/models"
)

// StepAction selects what a scheduled delivery does with its execution.
type StepAction string

const (
	ActionRun    StepAction = ""
	ActionResume StepAction = "resume"
	ActionReject StepAction = "reject"
)

// StepRef identifies the step an execution is about to run. Resume and reject
// refs carry an approval decision that could not be applied right away.
type StepRef struct {
	ExecutionID string
	WorkflowID  string
	NodeID      string
	Step        int
	Action      StepAction
	Reason      string
	Attempt     int
}

func refOf(exec *models.Execution) StepRef {
	return StepRef{
		ExecutionID: exec.ID,
		WorkflowID:  exec.WorkflowID,
		NodeID:      exec.CurrentNodeID,
		Step:        exec.Step,
	}
}

// Scheduler hands a step to the workers, now or after delay.
type Scheduler interface {
	Schedule(ctx context.Context, ref StepRef, delay time.Duration) error
}

// EventScheduler publishes immediate steps on the event bus keyed by execution id
// and parks delayed ones in the delay queue until PumpDelayed releases them.
type EventScheduler struct {
	publisher eventbus.EventPublisher
	queue     delayqueue.Queue
	now       func() time.Time
	logger    *slog.Logger
}

func NewEventScheduler(publisher eventbus.EventPublisher, queue delayqueue.Queue, logger *slog.Logger) *EventScheduler {
	return &EventScheduler{
		publisher: publisher,
		queue:     queue,
		now:       time.Now,
		logger:    logger.With("module", "scheduler"),
	}
}

func (s *EventScheduler) Schedule(ctx context.Context, ref StepRef, delay time.Duration) error {
	if delay > 0 {
		entry := delayqueue.Entry{
			ExecutionID: ref.ExecutionID,
			Step:        ref.Step,
			Action:      string(ref.Action),
			Reason:      ref.Reason,
			Attempt:     ref.Attempt,
		}

		err := s.queue.Schedule(ctx, entry, s.now().Add(delay))
		if err != nil {
			return fmt.Errorf("failed to delay step %d of %s: %w", ref.Step, ref.ExecutionID, err)
		}

		return nil
	}

	return s.publish(ctx, ref)
}

// PumpDelayed publishes up to limit due steps and returns how many were released.
// Steps that cannot be published go back to the queue.
func (s *EventScheduler) PumpDelayed(ctx context.Context, limit int) (int, error) {
	now := s.now()

	entries, err := s.queue.Due(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	var (
		released int
		errs     []error
	)

	for _, entry := range entries {
		err := s.publish(ctx, StepRef{
			ExecutionID: entry.ExecutionID,
			Step:        entry.Step,
			Action:      StepAction(entry.Action),
			Reason:      entry.Reason,
			Attempt:     entry.Attempt,
		})
		if err == nil {
			released++

			continue
		}

		errs = append(errs, err)

		if err := s.queue.Schedule(ctx, entry, now); err != nil {
			s.logger.ErrorContext(ctx, "lost delayed step", "execution_id", entry.ExecutionID, "step", entry.Step, "error", err)
		}
	}

	return released, errors.Join(errs...)
}

func (s *EventScheduler) publish(ctx context.Context, ref StepRef) error {
	err := s.publisher.Publish(ctx, ref.ExecutionID, events.StepScheduled{
		BaseEvent:   events.NewBaseEvent(events.StepScheduledEvent, ref.WorkflowID),
		ExecutionID: ref.ExecutionID,
		NodeID:      ref.NodeID,
		Step:        ref.Step,
		Action:      string(ref.Action),
		Reason:      ref.Reason,
		Attempt:     ref.Attempt,
	})
	if err != nil {
		return fmt.Errorf("failed to publish step %d of %s: %w", ref.Step, ref.ExecutionID, err)
	}

	return nil
}
