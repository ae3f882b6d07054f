package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
)

type SubmissionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSubmissionRepository(db *sql.DB, logger *slog.Logger) *SubmissionRepository {
	return &SubmissionRepository{db: db, logger: logger}
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT id, form_id, form, data, submitter, created_at FROM submissions WHERE id = $1`

	var (
		submission       models.Submission
		form, data, user []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&submission.ID,
		&submission.FormID,
		&form,
		&data,
		&user,
		&submission.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrSubmissionNotFound, id)
		}

		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	err = unmarshalJSON("form", form, &submission.Form)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSON("data", data, &submission.Data)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSON("submitter", user, &submission.User)
	if err != nil {
		return nil, err
	}

	return &submission, nil
}

func (r *SubmissionRepository) Save(ctx context.Context, submission *models.Submission) error {
	form, err := nullableJSON("form", submission.Form)
	if err != nil {
		return err
	}

	user, err := nullableJSON("submitter", submission.User)
	if err != nil {
		return err
	}

	if submission.Data == nil {
		submission.Data = make(map[string]any)
	}

	data, err := marshalJSON("data", submission.Data)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO submissions (id, form_id, form, data, submitter, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			form_id = EXCLUDED.form_id
		  , form = EXCLUDED.form
		  , data = EXCLUDED.data
		  , submitter = EXCLUDED.submitter
	`

	_, err = r.db.ExecContext(ctx, query, submission.ID, submission.FormID, form, data, user, submission.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save submission %s: %w", submission.ID, err)
	}

	return nil
}

type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTemplateRepository(db *sql.DB, logger *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.EmailTemplate, error) {
	var template models.EmailTemplate

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, subject, html FROM email_templates WHERE id = $1`, id,
	).Scan(&template.ID, &template.Name, &template.Subject, &template.HTML)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrTemplateNotFound, id)
		}

		return nil, fmt.Errorf("failed to scan email template: %w", err)
	}

	return &template, nil
}

func (r *TemplateRepository) Save(ctx context.Context, template *models.EmailTemplate) error {
	query := `
		INSERT INTO email_templates (id, name, subject, html)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , subject = EXCLUDED.subject
		  , html = EXCLUDED.html
	`

	_, err := r.db.ExecContext(ctx, query, template.ID, template.Name, template.Subject, template.HTML)
	if err != nil {
		return fmt.Errorf("failed to save email template %s: %w", template.ID, err)
	}

	return nil
}
