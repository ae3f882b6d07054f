// Package workflow drives executions through their workflow graph one scheduled step at a time.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/formflow/pkg/eventbus"
	"github.com/dukex/formflow/pkg/events"
	"github.com/dukex/formflow/pkg/lock"
	"github.com/dukex/formflow/pkg/log"
	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/nodes/apicall"
	"github.com/dukex/formflow/pkg/nodes/approvalgate"
	"github.com/dukex/formflow/pkg/nodes/condition"
	"github.com/dukex/formflow/pkg/nodes/delay"
	"github.com/dukex/formflow/pkg/nodes/email"
	"github.com/dukex/formflow/pkg/nodes/transform"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/google/uuid"
)

const (
	DefaultLockTTL = 15 * time.Minute
	inFlightRetry  = time.Second
	failureRetry   = 5 * time.Second
	lockAttempts   = 50
	lockInterval   = 100 * time.Millisecond

	// maxStepAttempts bounds redeliveries of a step that keeps failing for a
	// reason other than a busy execution.
	maxStepAttempts = 10
)

var (
	ErrNoStartNode     = errors.New("workflow has no start node")
	ErrStepInFlight    = errors.New("another step of this execution is running")
	ErrNotWaiting      = errors.New("execution is not waiting for approval")
	ErrExecutionClosed = errors.New("execution already finished")
	ErrStepPanicked    = errors.New("step panicked")
	ErrStepAbandoned   = errors.New("step abandoned")
	ErrUnknownAction   = errors.New("unknown step action")
)

// Steps holds the executors that need collaborators. Condition, transform and
// delay nodes are pure and need none.
type Steps struct {
	APICall  *apicall.Executor
	Approval *approvalgate.Executor
	Email    *email.Executor
}

type Executor struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	scheduler  Scheduler
	locker     lock.Locker
	publisher  eventbus.EventPublisher
	steps      Steps
	lockTTL    time.Duration
	logger     *slog.Logger
}

// NewExecutor builds the driver. publisher may be nil when nobody listens for
// finished executions.
func NewExecutor(
	store persistence.Persistence,
	scheduler Scheduler,
	locker lock.Locker,
	publisher eventbus.EventPublisher,
	steps Steps,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		workflows:  store.WorkflowRepository(),
		executions: store.ExecutionRepository(),
		scheduler:  scheduler,
		locker:     locker,
		publisher:  publisher,
		steps:      steps,
		lockTTL:    DefaultLockTTL,
		logger:     logger.With("module", "workflow_executor"),
	}
}

// StartExecution creates a running execution positioned on the node after start
// and schedules its first step. It does not wait for the execution to progress.
func (e *Executor) StartExecution(
	ctx context.Context,
	workflow *models.Workflow,
	submission *models.Submission,
) (*models.Execution, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate execution ID: %w", err)
	}

	exec := &models.Execution{
		ID:         id.String(),
		WorkflowID: workflow.ID,
		Status:     models.ExecutionStatusPending,
		Context:    map[string]any{},
		Logs:       make([]models.LogEntry, 0),
		StartedAt:  time.Now().UTC(),
	}

	if submission != nil {
		exec.SubmissionID = submission.ID
		exec.Context = submission.SeedContext()
	}

	logger := e.logger.With("execution_id", exec.ID, "workflow_id", workflow.ID)

	exec.AppendLog("started", map[string]any{"workflow_id": workflow.ID, "version": workflow.Version})

	start, ok := workflow.StartNode()
	if !ok {
		exec.AppendLog("failed", map[string]any{"error": ErrNoStartNode.Error()})

		if err := exec.Transition(models.ExecutionStatusFailed); err != nil {
			return nil, err
		}

		if err := e.executions.Create(ctx, exec); err != nil {
			return nil, err
		}

		e.publishFinished(ctx, exec)

		return exec, ErrNoStartNode
	}

	exec.CurrentNodeID = start.ID

	edge, ok := workflow.NextEdge(start.ID, "")
	if !ok {
		exec.AppendLog("completed", map[string]any{"node_id": start.ID})

		if err := exec.Transition(models.ExecutionStatusCompleted); err != nil {
			return nil, err
		}

		if err := e.executions.Create(ctx, exec); err != nil {
			return nil, err
		}

		e.publishFinished(ctx, exec)

		return exec, nil
	}

	exec.CurrentNodeID = edge.Target

	if err := exec.Transition(models.ExecutionStatusRunning); err != nil {
		return nil, err
	}

	if err := e.executions.Create(ctx, exec); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "execution started", "next_node_id", exec.CurrentNodeID)

	if err := e.scheduler.Schedule(ctx, refOf(exec), 0); err != nil {
		return exec, e.abort(ctx, exec, err)
	}

	return exec, nil
}

// ExecuteStep runs the node the execution points to. step must equal the
// execution's step counter; older deliveries are ignored.
func (e *Executor) ExecuteStep(ctx context.Context, executionID string, step int) error {
	lease, err := e.locker.Acquire(ctx, lock.ExecutionKey(executionID), e.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return ErrStepInFlight
	}

	if err != nil {
		return err
	}

	defer e.release(ctx, lease, executionID)

	exec, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	logger := log.FromContext(ctx, e.logger).With("execution_id", exec.ID, "workflow_id", exec.WorkflowID, "step", step)

	if exec.Status != models.ExecutionStatusRunning {
		logger.DebugContext(ctx, "skipping step of inactive execution", "status", exec.Status)

		return nil
	}

	if step != exec.Step {
		logger.DebugContext(ctx, "skipping stale step", "current_step", exec.Step)

		return nil
	}

	workflow, err := e.workflows.GetByID(ctx, exec.WorkflowID)
	if persistence.IsWorkflowNotFound(err) {
		return e.fail(ctx, exec, exec.CurrentNodeID, err)
	}

	if err != nil {
		return err
	}

	return e.runStep(ctx, workflow, exec)
}

// ContinueExecution resumes an execution whose approval was granted, following
// the approval node's outgoing edge. If the execution is busy or cannot be read
// the decision is scheduled and a worker applies it later.
func (e *Executor) ContinueExecution(ctx context.Context, executionID string) error {
	return e.decide(ctx, StepRef{ExecutionID: executionID, Action: ActionResume})
}

// RejectExecution ends an execution whose approval was refused. It defers like
// ContinueExecution.
func (e *Executor) RejectExecution(ctx context.Context, executionID, reason string) error {
	return e.decide(ctx, StepRef{ExecutionID: executionID, Action: ActionReject, Reason: reason})
}

// decide applies an approval decision now or hands it to the scheduler.
func (e *Executor) decide(ctx context.Context, ref StepRef) error {
	err := e.applyDecision(ctx, ref)
	if err == nil || permanent(err) {
		return err
	}

	log.FromContext(ctx, e.logger).WarnContext(ctx, "approval decision deferred",
		"execution_id", ref.ExecutionID,
		"action", ref.Action,
		"retry_in", inFlightRetry,
		"error", err,
	)

	if serr := e.scheduler.Schedule(ctx, ref, inFlightRetry); serr != nil {
		return errors.Join(err, fmt.Errorf("failed to schedule %s of %s: %w", ref.Action, ref.ExecutionID, serr))
	}

	return nil
}

func (e *Executor) applyDecision(ctx context.Context, ref StepRef) error {
	lease, err := e.locker.Acquire(ctx, lock.ExecutionKey(ref.ExecutionID), e.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return ErrStepInFlight
	}

	if err != nil {
		return err
	}

	defer e.release(ctx, lease, ref.ExecutionID)

	exec, err := e.executions.GetByID(ctx, ref.ExecutionID)
	if err != nil {
		return err
	}

	if exec.Status != models.ExecutionStatusWaitingApproval {
		return fmt.Errorf("%w: %s is %s", ErrNotWaiting, exec.ID, exec.Status)
	}

	if ref.Action == ActionReject {
		exec.AppendLog("rejected", map[string]any{"node_id": exec.CurrentNodeID, "reason": ref.Reason})

		if err := exec.Transition(models.ExecutionStatusFailed); err != nil {
			return err
		}

		return e.finish(ctx, exec)
	}

	workflow, err := e.workflows.GetByID(ctx, exec.WorkflowID)
	if persistence.IsWorkflowNotFound(err) {
		return e.fail(ctx, exec, exec.CurrentNodeID, err)
	}

	if err != nil {
		return err
	}

	if err := exec.Transition(models.ExecutionStatusRunning); err != nil {
		return err
	}

	exec.AppendLog("resumed", map[string]any{"node_id": exec.CurrentNodeID})

	return e.advance(ctx, workflow, exec, exec.CurrentNodeID, models.StepOutcome{Success: true})
}

// StopExecution moves a non-terminal execution to stopped. A step still running
// for it will find the stopped status when it tries to persist and back off.
func (e *Executor) StopExecution(ctx context.Context, executionID, stoppedBy string) (*models.Execution, error) {
	lease, err := e.waitForLock(ctx, executionID)
	if err != nil && !errors.Is(err, ErrStepInFlight) {
		return nil, err
	}

	if lease != nil {
		defer e.release(ctx, lease, executionID)
	}

	exec, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if exec.Status == models.ExecutionStatusStopped {
		return exec, nil
	}

	if exec.Status.IsTerminal() {
		return exec, fmt.Errorf("%w: %s is %s", ErrExecutionClosed, exec.ID, exec.Status)
	}

	exec.AppendLog("stopped", map[string]any{"node_id": exec.CurrentNodeID, "stopped_by": stoppedBy})

	if err := exec.Transition(models.ExecutionStatusStopped); err != nil {
		return nil, err
	}

	if err := e.finish(ctx, exec); err != nil {
		return nil, err
	}

	return exec, nil
}

func (e *Executor) runStep(ctx context.Context, workflow *models.Workflow, exec *models.Execution) error {
	node, ok := workflow.NodeByID(exec.CurrentNodeID)
	if !ok || node.Type == models.NodeTypeEnd {
		return e.complete(ctx, exec, "completed", map[string]any{"node_id": exec.CurrentNodeID})
	}

	outcome, err := e.dispatch(ctx, exec, node)
	if err != nil {
		return e.fail(ctx, exec, node.ID, err)
	}

	exec.LastOutcome = &outcome

	if outcome.Wait {
		return e.save(ctx, exec)
	}

	return e.advance(ctx, workflow, exec, node.ID, outcome)
}

// dispatch runs the executor matching the node's configuration. Panics become errors.
func (e *Executor) dispatch(ctx context.Context, exec *models.Execution, node *models.Node) (outcome models.StepOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: node %s: %v", ErrStepPanicked, node.ID, r)
		}
	}()

	config, err := models.ParseNodeConfig(node)
	if errors.Is(err, models.ErrUnknownNodeType) {
		return models.StepOutcome{}, err
	}

	if err != nil {
		exec.AppendLog("Node configuration invalid", map[string]any{"node_id": node.ID, "error": err.Error()})

		return models.StepOutcome{Success: false, Message: err.Error()}, nil
	}

	switch c := config.(type) {
	case models.StartConfig, models.EndConfig:
		return models.StepOutcome{Success: true}, nil
	case models.APICallConfig:
		return e.steps.APICall.Execute(ctx, exec, node, c)
	case models.ApprovalConfig:
		return e.steps.Approval.Execute(ctx, exec, node, c)
	case models.ConditionConfig:
		return condition.Execute(exec, node, c), nil
	case models.TransformConfig:
		return transform.Execute(exec, node, c), nil
	case models.EmailConfig:
		return e.steps.Email.Execute(ctx, exec, node, c)
	case models.DelayConfig:
		return delay.Execute(exec, node, c), nil
	default:
		return models.StepOutcome{}, fmt.Errorf("%w: %T", models.ErrUnknownNodeType, config)
	}
}

// advance follows the edge selected by outcome and schedules the next step, or
// completes the execution when no edge matches.
func (e *Executor) advance(
	ctx context.Context,
	workflow *models.Workflow,
	exec *models.Execution,
	nodeID string,
	outcome models.StepOutcome,
) error {
	edge, ok := SelectEdge(workflow, nodeID, outcome)
	if !ok {
		if !outcome.Success {
			return e.complete(ctx, exec, "completed after unrouted failure", map[string]any{
				"node_id": nodeID,
				"message": outcome.Message,
			})
		}

		return e.complete(ctx, exec, "completed", map[string]any{"node_id": nodeID})
	}

	exec.CurrentNodeID = edge.Target
	exec.Step++

	err := e.executions.Update(ctx, exec)
	if persistence.IsExecutionStopped(err) {
		e.logger.InfoContext(ctx, "execution stopped while step was running", "execution_id", exec.ID)

		return nil
	}

	if err != nil {
		return err
	}

	wait := time.Duration(outcome.DelaySeconds) * time.Second

	if err := e.scheduler.Schedule(ctx, refOf(exec), wait); err != nil {
		return e.abort(ctx, exec, err)
	}

	return nil
}

// SelectEdge picks the edge leaving nodeID. An explicit branch must match the edge's
// sourceHandle. A failed outcome without a branch only follows a "false" edge. A
// successful one takes the first edge not reserved for the false branch.
func SelectEdge(workflow *models.Workflow, nodeID string, outcome models.StepOutcome) (*models.Edge, bool) {
	branch := outcome.Branch
	if branch == "" && !outcome.Success {
		branch = models.BranchFalse
	}

	if branch != "" {
		return workflow.NextEdge(nodeID, branch)
	}

	for _, edge := range workflow.OutgoingEdges(nodeID) {
		if edge.SourceHandle != models.BranchFalse {
			return edge, true
		}
	}

	return nil, false
}

func (e *Executor) complete(ctx context.Context, exec *models.Execution, message string, data map[string]any) error {
	exec.AppendLog(message, data)

	if err := exec.Transition(models.ExecutionStatusCompleted); err != nil {
		return err
	}

	return e.finish(ctx, exec)
}

func (e *Executor) fail(ctx context.Context, exec *models.Execution, nodeID string, cause error) error {
	log.FromContext(ctx, e.logger).ErrorContext(ctx, "step failed",
		"execution_id", exec.ID,
		"workflow_id", exec.WorkflowID,
		"node_id", nodeID,
		"error", cause,
	)

	exec.AppendLog("failed", map[string]any{"node_id": nodeID, "error": cause.Error()})

	if err := exec.Transition(models.ExecutionStatusFailed); err != nil {
		return err
	}

	return e.finish(ctx, exec)
}

// abort fails an execution whose next step could not be scheduled.
func (e *Executor) abort(ctx context.Context, exec *models.Execution, cause error) error {
	err := e.fail(ctx, exec, exec.CurrentNodeID, fmt.Errorf("scheduling failed: %w", cause))
	if err != nil {
		return errors.Join(cause, err)
	}

	return cause
}

// finish persists a terminal execution and announces it.
func (e *Executor) finish(ctx context.Context, exec *models.Execution) error {
	err := e.executions.Update(ctx, exec)
	if persistence.IsExecutionStopped(err) {
		return nil
	}

	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "execution finished", "execution_id", exec.ID, "status", exec.Status)
	e.publishFinished(ctx, exec)

	return nil
}

func (e *Executor) save(ctx context.Context, exec *models.Execution) error {
	err := e.executions.Update(ctx, exec)
	if persistence.IsExecutionStopped(err) {
		return nil
	}

	return err
}

func (e *Executor) publishFinished(ctx context.Context, exec *models.Execution) {
	if e.publisher == nil {
		return
	}

	var duration time.Duration
	if exec.CompletedAt != nil {
		duration = exec.CompletedAt.Sub(exec.StartedAt)
	}

	err := e.publisher.Publish(ctx, exec.ID, events.ExecutionFinished{
		BaseEvent:    events.NewBaseEvent(events.ExecutionFinishedEvent, exec.WorkflowID),
		ExecutionID:  exec.ID,
		SubmissionID: exec.SubmissionID,
		Status:       string(exec.Status),
		DurationMs:   duration.Milliseconds(),
	})
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish finished event", "execution_id", exec.ID, "error", err)
	}
}

// waitForLock polls for the execution lock, returning ErrStepInFlight when it stays busy.
func (e *Executor) waitForLock(ctx context.Context, executionID string) (lock.Lease, error) {
	key := lock.ExecutionKey(executionID)

	for range lockAttempts {
		lease, err := e.locker.Acquire(ctx, key, e.lockTTL)
		if err == nil {
			return lease, nil
		}

		if !errors.Is(err, lock.ErrNotAcquired) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockInterval):
		}
	}

	return nil, ErrStepInFlight
}

func (e *Executor) release(ctx context.Context, lease lock.Lease, executionID string) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		e.logger.WarnContext(ctx, "failed to release execution lock", "execution_id", executionID, "error", err)
	}
}
