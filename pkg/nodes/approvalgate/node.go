// Package approvalgate suspends an execution until a human approves or rejects it.
package approvalgate

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/formflow/pkg/approval"
	"github.com/dukex/formflow/pkg/mail"
	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/template"
)

const notifyTimeout = 30 * time.Second

// Requester creates approval requests. *approval.Service satisfies it.
type Requester interface {
	Create(ctx context.Context, req approval.CreateRequest) (*models.ApprovalRequest, error)
}

type Executor struct {
	approvals Requester
	mailer    mail.Mailer
	appURL    string
	logger    *slog.Logger
}

func NewExecutor(approvals Requester, mailer mail.Mailer, appURL string, logger *slog.Logger) *Executor {
	return &Executor{
		approvals: approvals,
		mailer:    mailer,
		appURL:    strings.TrimRight(appURL, "/"),
		logger:    logger.With("module", "approvalgate"),
	}
}

// Execute stores a pending request, moves the execution to waiting_approval and
// mails the approver a link to respond.
func (e *Executor) Execute(
	ctx context.Context,
	exec *models.Execution,
	node *models.Node,
	config models.ApprovalConfig,
) (models.StepOutcome, error) {
	approver := strings.TrimSpace(template.Interpolate(config.ApproverEmail, exec.Context))
	if approver == "" || strings.Contains(approver, "{{") {
		exec.AppendLog("Approval skipped: no approver", map[string]any{"node_id": node.ID})

		return models.StepOutcome{Success: false, Message: "no approver email"}, nil
	}

	subject := template.Interpolate(config.Subject, exec.Context)
	if subject == "" {
		subject = "Approval required: " + node.Label()
	}

	message := template.Interpolate(config.Message, exec.Context)

	request, err := e.approvals.Create(ctx, approval.CreateRequest{
		ExecutionID:   exec.ID,
		NodeID:        node.ID,
		ApproverEmail: approver,
		Subject:       subject,
		Message:       message,
	})
	if err != nil {
		return models.StepOutcome{}, fmt.Errorf("failed to create approval request: %w", err)
	}

	err = exec.Transition(models.ExecutionStatusWaitingApproval)
	if err != nil {
		return models.StepOutcome{}, err
	}

	exec.AppendLog("Waiting for approval", map[string]any{
		"node_id":        node.ID,
		"approval_id":    request.ID,
		"approver_email": approver,
		"expires_at":     request.ExpiresAt,
	})

	e.notify(ctx, exec, node, request)

	return models.StepOutcome{Success: true, Wait: true}, nil
}

// Link is the page where the approver responds.
func (e *Executor) Link(token string) string {
	return e.appURL + "/approvals/" + token
}

func (e *Executor) notify(ctx context.Context, exec *models.Execution, node *models.Node, request *models.ApprovalRequest) {
	link := e.Link(request.Token)

	var body strings.Builder

	if request.Message != "" {
		body.WriteString("<p>")
		body.WriteString(strings.ReplaceAll(html.EscapeString(request.Message), "\n", "<br>"))
		body.WriteString("</p>")
	}

	body.WriteString(`<p><a href="`)
	body.WriteString(html.EscapeString(link))
	body.WriteString(`">Review and respond</a></p>`)
	body.WriteString("<p>This link expires on ")
	body.WriteString(request.ExpiresAt.Format(time.RFC1123))
	body.WriteString(".</p>")

	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	err := e.mailer.Send(sendCtx, mail.Message{
		To:      request.ApproverEmail,
		Subject: request.Subject,
		HTML:    body.String(),
		Text:    request.Message + "\n\nRespond at " + link,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "approval notification failed",
			"execution_id", exec.ID,
			"approval_id", request.ID,
			"error", err,
		)
		exec.AppendLog("Approval notification failed", map[string]any{
			"node_id": node.ID,
			"error":   err.Error(),
		})
	}
}

// Schema returns the JSON schema for approval node data.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"label": map[string]any{"type": "string"},
			"approver_email": map[string]any{
				"type":        "string",
				"description": "Approver address. Supports placeholders",
				"minLength":   1,
			},
			"subject": map[string]any{"type": "string"},
			"message": map[string]any{"type": "string"},
		},
		"required": []string{"approver_email"},
	}
}
