// Package file provides file-based persistence for local development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/formflow/pkg/persistence"
)

// Persistence implements persistence.Persistence using one JSON document per record.
// A single mutex serializes writes so guarded updates are atomic within a process.
type Persistence struct {
	store *store

	workflowRepo   *WorkflowRepository
	executionRepo  *ExecutionRepository
	approvalRepo   *ApprovalRepository
	submissionRepo *SubmissionRepository
	templateRepo   *TemplateRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	s := &store{root: strings.Replace(root, "file://", "", 1)}

	return &Persistence{
		store:          s,
		workflowRepo:   &WorkflowRepository{store: s},
		executionRepo:  &ExecutionRepository{store: s},
		approvalRepo:   &ApprovalRepository{store: s},
		submissionRepo: &SubmissionRepository{store: s},
		templateRepo:   &TemplateRepository{store: s},
	}
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return fp.approvalRepo
}

func (fp *Persistence) SubmissionRepository() persistence.SubmissionRepository {
	return fp.submissionRepo
}

func (fp *Persistence) TemplateRepository() persistence.TemplateRepository {
	return fp.templateRepo
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.store.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

var errNotExist = errors.New("record does not exist")

type store struct {
	mu   sync.RWMutex
	root string
}

func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("id contains invalid characters")
	}

	return nil
}

func (s *store) path(collection, id string) string {
	return filepath.Join(s.root, collection, id+".json")
}

// read loads one record. Callers hold the lock.
func (s *store) read(collection, id string, out any) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	body, err := os.ReadFile(s.path(collection, id))
	if err != nil {
		if os.IsNotExist(err) {
			return errNotExist
		}

		return fmt.Errorf("failed to read %s %s: %w", collection, id, err)
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", collection, id, err)
	}

	return nil
}

// write stores one record through a rename so readers never see a partial file. Callers hold the lock.
func (s *store) write(collection, id string, value any) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	dir := filepath.Join(s.root, collection)

	err = os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", collection, id, err)
	}

	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s %s: %w", collection, id, err)
	}

	return os.Rename(tmp.Name(), s.path(collection, id))
}

func (s *store) remove(collection, id string) error {
	err := os.Remove(s.path(collection, id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s %s: %w", collection, id, err)
	}

	return nil
}

// ids lists the record identifiers of a collection. Callers hold the lock.
func (s *store) ids(collection string) ([]string, error) {
	files, err := fs.Glob(os.DirFS(filepath.Join(s.root, collection)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
