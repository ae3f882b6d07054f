// Package email sends the notification configured on an email node.
package email

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/formflow/pkg/mail"
	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/dukex/formflow/pkg/template"
)

// SendTimeout bounds a single delivery attempt.
const SendTimeout = 30 * time.Second

// TemplateStore looks up stored email templates.
type TemplateStore interface {
	GetByID(ctx context.Context, id string) (*models.EmailTemplate, error)
}

type Executor struct {
	templates TemplateStore
	mailer    mail.Mailer
	logger    *slog.Logger
}

func NewExecutor(templates TemplateStore, mailer mail.Mailer, logger *slog.Logger) *Executor {
	return &Executor{
		templates: templates,
		mailer:    mailer,
		logger:    logger.With("module", "email"),
	}
}

// Execute composes and sends the message. A missing recipient or template fails the
// step; a delivery error is logged and does not.
func (e *Executor) Execute(
	ctx context.Context,
	exec *models.Execution,
	node *models.Node,
	config models.EmailConfig,
) (models.StepOutcome, error) {
	recipient := Recipient(config, exec.Context)
	if recipient == "" {
		exec.AppendLog("Email skipped: no recipient", map[string]any{"node_id": node.ID})

		return models.StepOutcome{Success: false, Message: "no recipient"}, nil
	}

	msg := mail.Message{To: recipient}

	if config.TemplateID != "" {
		tpl, err := e.templates.GetByID(ctx, config.TemplateID)
		if errors.Is(err, persistence.ErrTemplateNotFound) {
			exec.AppendLog("Email skipped: template not found", map[string]any{
				"node_id":     node.ID,
				"template_id": config.TemplateID,
			})

			return models.StepOutcome{Success: false, Message: "template not found"}, nil
		}

		if err != nil {
			return models.StepOutcome{}, err
		}

		msg.Subject, msg.HTML = mail.Render(tpl, exec.Context, config.IncludeData)
	} else {
		msg.Subject = template.Interpolate(config.Subject, exec.Context)
		msg.Text = template.Interpolate(config.Body, exec.Context)

		if config.IncludeData {
			msg.HTML = "<p>" + strings.ReplaceAll(html.EscapeString(msg.Text), "\n", "<br>") + "</p>" +
				mail.DataTable(exec.Context)
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()

	err := e.mailer.Send(sendCtx, msg)
	if err != nil {
		e.logger.WarnContext(ctx, "email delivery failed",
			"execution_id", exec.ID,
			"node_id", node.ID,
			"error", err,
		)
		exec.AppendLog("Email delivery failed", map[string]any{
			"node_id": node.ID,
			"to":      recipient,
			"error":   err.Error(),
		})

		return models.StepOutcome{Success: true}, nil
	}

	exec.AppendLog("Email sent", map[string]any{
		"node_id": node.ID,
		"to":      recipient,
		"subject": msg.Subject,
	})

	return models.StepOutcome{Success: true}, nil
}

// Recipient resolves the explicit address, falling back to the submitting user.
func Recipient(config models.EmailConfig, ctx map[string]any) string {
	to := strings.TrimSpace(template.Interpolate(config.To, ctx))
	if to != "" && !strings.Contains(to, "{{") {
		return to
	}

	return strings.TrimSpace(template.LookupString(ctx, models.ContextKeyUser+".email", ""))
}

// Schema returns the JSON schema for email node data.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"label": map[string]any{"type": "string"},
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient address. Defaults to the submitting user's email",
			},
			"subject":      map[string]any{"type": "string"},
			"body":         map[string]any{"type": "string"},
			"template_id":  map[string]any{"type": "string"},
			"include_data": map[string]any{"type": "boolean", "default": false},
		},
		"anyOf": []map[string]any{
			{"required": []string{"template_id"}},
			{"required": []string{"subject"}},
		},
	}
}
