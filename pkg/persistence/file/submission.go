package file

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
)

const (
	submissionsCollection = "submissions"
	templatesCollection   = "email_templates"
)

type SubmissionRepository struct {
	store *store
}

func (sr *SubmissionRepository) GetByID(_ context.Context, id string) (*models.Submission, error) {
	sr.store.mu.RLock()
	defer sr.store.mu.RUnlock()

	var submission models.Submission

	err := sr.store.read(submissionsCollection, id, &submission)
	if errors.Is(err, errNotExist) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrSubmissionNotFound, id)
	}

	if err != nil {
		return nil, err
	}

	return &submission, nil
}

func (sr *SubmissionRepository) Save(_ context.Context, submission *models.Submission) error {
	sr.store.mu.Lock()
	defer sr.store.mu.Unlock()

	return sr.store.write(submissionsCollection, submission.ID, submission)
}

type TemplateRepository struct {
	store *store
}

func (tr *TemplateRepository) GetByID(_ context.Context, id string) (*models.EmailTemplate, error) {
	tr.store.mu.RLock()
	defer tr.store.mu.RUnlock()

	var template models.EmailTemplate

	err := tr.store.read(templatesCollection, id, &template)
	if errors.Is(err, errNotExist) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrTemplateNotFound, id)
	}

	if err != nil {
		return nil, err
	}

	return &template, nil
}

func (tr *TemplateRepository) Save(_ context.Context, template *models.EmailTemplate) error {
	tr.store.mu.Lock()
	defer tr.store.mu.Unlock()

	return tr.store.write(templatesCollection, template.ID, template)
}
