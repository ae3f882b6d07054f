package file

import (
	"testing"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/tmp/test", NewPersistence("/tmp/test").store.root)
	assert.Equal(t, "/tmp/test", NewPersistence("file:///tmp/test").store.root)
}

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewPersistence(t.TempDir()).HealthCheck(t.Context()))
	require.Error(t, NewPersistence("/does/not/exist/formflow").HealthCheck(t.Context()))
}

func TestStore_RejectsTraversal(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())

	err := p.SubmissionRepository().Save(t.Context(), &models.Submission{ID: "../escape"})
	require.Error(t, err)

	_, err = p.ExecutionRepository().GetByID(t.Context(), "a/b")
	require.Error(t, err)
}

func TestExecutionRepository_Lifecycle(t *testing.T) {
	t.Parallel()

	repo := NewPersistence(t.TempDir()).ExecutionRepository()
	ctx := t.Context()

	_, err := repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrExecutionNotFound)

	execution := &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusPending,
		Context:    map[string]any{"submission": map[string]any{"id": "sub-1"}},
	}
	execution.AppendLog("started", nil)

	require.NoError(t, repo.Create(ctx, execution))

	execution.Status = models.ExecutionStatusRunning
	execution.CurrentNodeID = "api"
	execution.Step = 1
	require.NoError(t, repo.Update(ctx, execution))

	loaded, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, loaded.Status)
	assert.Equal(t, "api", loaded.CurrentNodeID)
	assert.Equal(t, 1, loaded.Step)
	require.Len(t, loaded.Logs, 1)
	assert.Equal(t, "started", loaded.Logs[0].Message)
}

func TestExecutionRepository_UpdateAfterStop(t *testing.T) {
	t.Parallel()

	repo := NewPersistence(t.TempDir()).ExecutionRepository()
	ctx := t.Context()

	execution := &models.Execution{ID: "exec-1", Status: models.ExecutionStatusRunning}
	require.NoError(t, repo.Create(ctx, execution))

	stopped := *execution
	stopped.Status = models.ExecutionStatusStopped
	require.NoError(t, repo.Update(ctx, &stopped))

	execution.CurrentNodeID = "next"
	err := repo.Update(ctx, execution)
	require.ErrorIs(t, err, persistence.ErrExecutionStopped)

	loaded, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusStopped, loaded.Status)
	assert.Empty(t, loaded.CurrentNodeID)
}

func TestSubmissionAndTemplateRepositories(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	submission := &models.Submission{
		ID:     "sub-1",
		FormID: "form-1",
		Data:   map[string]any{"name": "Ana"},
		User:   &models.User{ID: "u1", Email: "ana@example.com"},
	}
	require.NoError(t, p.SubmissionRepository().Save(ctx, submission))

	loaded, err := p.SubmissionRepository().GetByID(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", loaded.User.Email)

	_, err = p.SubmissionRepository().GetByID(ctx, "sub-2")
	require.ErrorIs(t, err, persistence.ErrSubmissionNotFound)

	require.NoError(t, p.TemplateRepository().Save(ctx, &models.EmailTemplate{ID: "welcome", Subject: "Hi"}))

	tpl, err := p.TemplateRepository().GetByID(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, "Hi", tpl.Subject)

	_, err = p.TemplateRepository().GetByID(ctx, "nope")
	require.ErrorIs(t, err, persistence.ErrTemplateNotFound)
}
