package file

import (
	"context"
	"errors"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
)

const executionsCollection = "executions"

// ExecutionRepository handles execution-related file operations.
type ExecutionRepository struct {
	store *store
}

func (er *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	return er.store.write(executionsCollection, execution.ID, execution)
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	er.store.mu.RLock()
	defer er.store.mu.RUnlock()

	var execution models.Execution

	err := er.store.read(executionsCollection, id, &execution)
	if errors.Is(err, errNotExist) {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, err
	}

	return &execution, nil
}

func (er *ExecutionRepository) Update(_ context.Context, execution *models.Execution) error {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	var stored models.Execution

	err := er.store.read(executionsCollection, execution.ID, &stored)
	if errors.Is(err, errNotExist) {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return err
	}

	if stored.Status == models.ExecutionStatusStopped && execution.Status != models.ExecutionStatusStopped {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionStopped)
	}

	return er.store.write(executionsCollection, execution.ID, execution)
}
