package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/formflow/pkg/events"
	"github.com/dukex/formflow/pkg/lock"
	"github.com/dukex/formflow/pkg/log"
	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
)

// TriggerForSubmission starts every active submission workflow listening to the
// submission's form. A failure to start one workflow does not prevent the others.
func (e *Executor) TriggerForSubmission(ctx context.Context, submission *models.Submission) ([]*models.Execution, error) {
	workflows, err := e.workflows.GetActive(ctx, submission.FormID, models.TriggerOnSubmission)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows for form %s: %w", submission.FormID, err)
	}

	executions := make([]*models.Execution, 0, len(workflows))

	var errs []error

	for _, workflow := range workflows {
		exec, err := e.StartExecution(ctx, workflow, submission)
		if exec != nil {
			executions = append(executions, exec)
		}

		if err != nil {
			e.logger.ErrorContext(ctx, "failed to start workflow",
				"workflow_id", workflow.ID,
				"submission_id", submission.ID,
				"error", err,
			)

			errs = append(errs, fmt.Errorf("workflow %s: %w", workflow.ID, err))
		}
	}

	return executions, errors.Join(errs...)
}

// HandleStepScheduled is the worker's handler for StepScheduled events. A step
// that cannot run now is handed back to the scheduler instead of being nacked so
// that one busy execution does not hold up its partition. Deliveries for missing
// executions are dropped, and a step that keeps failing is abandoned after
// maxStepAttempts.
func (e *Executor) HandleStepScheduled(ctx context.Context, event any) error {
	scheduled, ok := event.(*events.StepScheduled)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	ref := StepRef{
		ExecutionID: scheduled.ExecutionID,
		WorkflowID:  scheduled.WorkflowID,
		NodeID:      scheduled.NodeID,
		Step:        scheduled.Step,
		Action:      StepAction(scheduled.Action),
		Reason:      scheduled.Reason,
		Attempt:     scheduled.Attempt,
	}

	err := e.runScheduled(ctx, ref)
	if err == nil {
		return nil
	}

	logger := log.FromContext(ctx, e.logger).With(
		"execution_id", ref.ExecutionID,
		"step", ref.Step,
		"action", ref.Action,
	)

	if permanent(err) {
		logger.InfoContext(ctx, "scheduled step dropped", "error", err)

		return nil
	}

	retry := inFlightRetry

	if !errors.Is(err, ErrStepInFlight) {
		retry = failureRetry
		ref.Attempt++

		if ref.Attempt >= maxStepAttempts {
			e.abandon(ctx, ref, err)

			return nil
		}
	}

	logger.WarnContext(ctx, "step deferred", "retry_in", retry, "attempt", ref.Attempt, "error", err)

	if err := e.scheduler.Schedule(ctx, ref, retry); err != nil {
		return fmt.Errorf("failed to reschedule step %d of %s: %w", ref.Step, ref.ExecutionID, err)
	}

	return nil
}

// runScheduled performs what a scheduled delivery asks for.
func (e *Executor) runScheduled(ctx context.Context, ref StepRef) error {
	switch ref.Action {
	case ActionRun:
		return e.ExecuteStep(ctx, ref.ExecutionID, ref.Step)
	case ActionResume, ActionReject:
		return e.applyDecision(ctx, ref)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, ref.Action)
	}
}

// abandon gives up on a delivery that kept failing. A running execution still on
// the abandoned step is failed; an abandoned decision leaves the execution waiting.
func (e *Executor) abandon(ctx context.Context, ref StepRef, cause error) {
	logger := log.FromContext(ctx, e.logger).With("execution_id", ref.ExecutionID, "step", ref.Step, "action", ref.Action)
	logger.ErrorContext(ctx, "scheduled step abandoned", "attempts", ref.Attempt, "error", cause)

	if ref.Action != ActionRun {
		return
	}

	lease, err := e.locker.Acquire(ctx, lock.ExecutionKey(ref.ExecutionID), e.lockTTL)
	if err != nil {
		logger.ErrorContext(ctx, "failed to fail abandoned execution", "error", err)

		return
	}

	defer e.release(ctx, lease, ref.ExecutionID)

	exec, err := e.executions.GetByID(ctx, ref.ExecutionID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to fail abandoned execution", "error", err)

		return
	}

	if exec.Status != models.ExecutionStatusRunning || exec.Step != ref.Step {
		return
	}

	cause = fmt.Errorf("%w after %d attempts: %w", ErrStepAbandoned, ref.Attempt, cause)

	if err := e.fail(ctx, exec, exec.CurrentNodeID, cause); err != nil {
		logger.ErrorContext(ctx, "failed to fail abandoned execution", "error", err)
	}
}

// permanent reports errors that retrying a delivery cannot fix.
func permanent(err error) bool {
	return errors.Is(err, ErrNotWaiting) ||
		errors.Is(err, ErrUnknownAction) ||
		persistence.IsExecutionNotFound(err)
}
