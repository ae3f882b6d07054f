package file

import (
	"testing"
	"time"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkflow(id string, formID *string, active bool, trigger models.TriggerOn) *models.Workflow {
	return &models.Workflow{
		ID:        id,
		Name:      "Workflow " + id,
		FormID:    formID,
		TriggerOn: trigger,
		Active:    active,
		Version:   1,
		Nodes:     []*models.Node{{ID: "start", Type: models.NodeTypeStart}},
		CreatedAt: time.Now().UTC(),
	}
}

func TestWorkflowRepository_GetByID(t *testing.T) {
	t.Parallel()

	repo := NewPersistence(t.TempDir()).WorkflowRepository()
	formID := "form-1"

	require.NoError(t, repo.Save(t.Context(), newWorkflow("wf-1", &formID, true, models.TriggerOnSubmission)))

	workflow, err := repo.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Workflow wf-1", workflow.Name)
	assert.Equal(t, "form-1", *workflow.FormID)

	_, err = repo.GetByID(t.Context(), "wf-2")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_GetActive(t *testing.T) {
	t.Parallel()

	repo := NewPersistence(t.TempDir()).WorkflowRepository()
	ctx := t.Context()
	form1, form2 := "form-1", "form-2"

	global := newWorkflow("wf-global", nil, true, models.TriggerOnSubmission)
	global.FormIDs = []string{"form-1"}

	for _, workflow := range []*models.Workflow{
		newWorkflow("wf-bound", &form1, true, models.TriggerOnSubmission),
		newWorkflow("wf-inactive", &form1, false, models.TriggerOnSubmission),
		newWorkflow("wf-manual", &form1, true, models.TriggerOnManual),
		newWorkflow("wf-other", &form2, true, models.TriggerOnSubmission),
		global,
	} {
		require.NoError(t, repo.Save(ctx, workflow))
	}

	workflows, err := repo.GetActive(ctx, "form-1", models.TriggerOnSubmission)
	require.NoError(t, err)

	ids := make([]string, 0, len(workflows))
	for _, workflow := range workflows {
		ids = append(ids, workflow.ID)
	}

	assert.ElementsMatch(t, []string{"wf-bound", "wf-global"}, ids)
}

func TestWorkflowRepository_Versions(t *testing.T) {
	t.Parallel()

	repo := NewPersistence(t.TempDir()).WorkflowRepository()
	ctx := t.Context()
	workflow := newWorkflow("wf-1", nil, true, models.TriggerOnManual)

	for version := 1; version <= 5; version++ {
		workflow.Version = version
		require.NoError(t, repo.SaveVersion(ctx, workflow.Snapshot(time.Now())))
	}

	require.NoError(t, repo.SaveVersion(ctx, &models.WorkflowVersion{WorkflowID: "wf-other", Version: 1}))

	require.NoError(t, repo.PruneVersions(ctx, "wf-1", 3))

	versions, err := repo.Versions(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 5, versions[0].Version)
	assert.Equal(t, 3, versions[2].Version)

	others, err := repo.Versions(ctx, "wf-other")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}
