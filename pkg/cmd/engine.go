package cmd

import (
	"log/slog"

	"github.com/dukex/formflow/pkg/approval"
	"github.com/dukex/formflow/pkg/audit"
	"github.com/dukex/formflow/pkg/eventbus"
	"github.com/dukex/formflow/pkg/httpclient"
	"github.com/dukex/formflow/pkg/lock"
	"github.com/dukex/formflow/pkg/mail"
	"github.com/dukex/formflow/pkg/nodes/apicall"
	"github.com/dukex/formflow/pkg/nodes/approvalgate"
	"github.com/dukex/formflow/pkg/nodes/email"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/dukex/formflow/pkg/ssrf"
	"github.com/dukex/formflow/pkg/workflow"
)

// Engine bundles the execution driver with the approval service it is wired to.
type Engine struct {
	Executor  *workflow.Executor
	Approvals *approval.Service
}

type EngineConfig struct {
	Persistence persistence.Persistence
	Scheduler   workflow.Scheduler
	Locker      lock.Locker
	Publisher   eventbus.EventPublisher
	Mailer      mail.Mailer
	AppURL      string
}

func NewEngine(config EngineConfig, logger *slog.Logger) *Engine {
	guard := ssrf.NewGuard()
	approvals := approval.NewService(config.Persistence.ApprovalRepository(), audit.NewSlogSink(logger), logger)

	executor := workflow.NewExecutor(
		config.Persistence,
		config.Scheduler,
		config.Locker,
		config.Publisher,
		workflow.Steps{
			APICall:  apicall.NewExecutor(httpclient.New(guard.DialControl), guard, logger),
			Approval: approvalgate.NewExecutor(approvals, config.Mailer, config.AppURL, logger),
			Email:    email.NewExecutor(config.Persistence.TemplateRepository(), config.Mailer, logger),
		},
		logger,
	)

	approvals.SetContinuer(executor)

	return &Engine{Executor: executor, Approvals: approvals}
}
