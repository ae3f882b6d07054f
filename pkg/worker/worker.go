// Package worker consumes scheduled steps from the event bus and runs the periodic jobs.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/formflow/pkg/approval"
	"github.com/dukex/formflow/pkg/eventbus"
	"github.com/dukex/formflow/pkg/events"
	"github.com/dukex/formflow/pkg/log"
	"github.com/dukex/formflow/pkg/otelhelper"
	"github.com/dukex/formflow/pkg/workflow"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultCleanupSchedule = "@daily"
	pumpSchedule           = "@every 1s"
	pumpBatch              = 100
)

// Delayed releases parked steps once they are due.
type Delayed interface {
	PumpDelayed(ctx context.Context, limit int) (int, error)
}

type Config struct {
	ID              string
	CleanupSchedule string
}

type Manager struct {
	id              string
	cleanupSchedule string
	engine          *workflow.Executor
	approvals       *approval.Service
	delayed         Delayed
	subscriber      eventbus.EventSubscriber
	tracer          trace.Tracer
	cron            *cron.Cron
	logger          *slog.Logger
}

func NewManager(
	config Config,
	engine *workflow.Executor,
	approvals *approval.Service,
	delayed Delayed,
	subscriber eventbus.EventSubscriber,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Manager {
	if config.CleanupSchedule == "" {
		config.CleanupSchedule = DefaultCleanupSchedule
	}

	logger = logger.With("module", "worker", "worker_id", config.ID)

	return &Manager{
		id:              config.ID,
		cleanupSchedule: config.CleanupSchedule,
		engine:          engine,
		approvals:       approvals,
		delayed:         delayed,
		subscriber:      subscriber,
		tracer:          tracer,
		cron: cron.New(cron.WithLogger(
			cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)),
		)),
		logger: logger,
	}
}

// Start registers the handlers, subscribes and starts the cron jobs. It does not block.
func (m *Manager) Start(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting worker")

	err := m.subscriber.Handle(events.StepScheduledEvent, m.handleStepScheduled)
	if err != nil {
		return err
	}

	err = m.subscriber.Handle(events.ExecutionFinishedEvent, m.handleExecutionFinished)
	if err != nil {
		return err
	}

	_, err = m.cron.AddFunc(m.cleanupSchedule, func() { m.cleanup(ctx) })
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", m.cleanupSchedule, err)
	}

	_, err = m.cron.AddFunc(pumpSchedule, func() { m.pump(ctx) })
	if err != nil {
		return err
	}

	err = m.subscriber.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	m.cron.Start()

	m.logger.InfoContext(ctx, "Worker started", "cleanup_schedule", m.cleanupSchedule)

	return nil
}

// Stop waits for running cron jobs to return.
func (m *Manager) Stop(ctx context.Context) {
	select {
	case <-m.cron.Stop().Done():
	case <-ctx.Done():
	}

	m.logger.InfoContext(ctx, "Worker stopped")
}

func (m *Manager) handleStepScheduled(ctx context.Context, event any) error {
	scheduled, ok := event.(*events.StepScheduled)
	if !ok {
		return m.engine.HandleStepScheduled(ctx, event)
	}

	attrs := otelhelper.StepAttributes(scheduled.ExecutionID, scheduled.WorkflowID, scheduled.NodeID, scheduled.Step)
	attrs = append(attrs, attribute.String(otelhelper.WorkerIDKey, m.id))

	ctx = log.IntoContext(ctx, m.logger.With("module", "workflow_executor", "event_id", scheduled.ID))

	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "formflow.step", attrs...)
	defer span.End()

	err := m.engine.HandleStepScheduled(ctx, scheduled)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return err
}

func (m *Manager) handleExecutionFinished(ctx context.Context, event any) error {
	finished, ok := event.(*events.ExecutionFinished)
	if !ok {
		return nil
	}

	m.logger.InfoContext(ctx, "execution finished",
		"execution_id", finished.ExecutionID,
		"workflow_id", finished.WorkflowID,
		"status", finished.Status,
		"duration_ms", finished.DurationMs,
	)

	return nil
}

func (m *Manager) cleanup(ctx context.Context) {
	_, err := m.approvals.Cleanup(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "approval cleanup failed", "error", err)
	}
}

func (m *Manager) pump(ctx context.Context) {
	released, err := m.delayed.PumpDelayed(ctx, pumpBatch)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to release delayed steps", "error", err)
	}

	if released > 0 {
		m.logger.DebugContext(ctx, "delayed steps released", "count", released)
	}
}
