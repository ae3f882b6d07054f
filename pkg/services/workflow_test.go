package services

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence/file"
	"github.com/dukex/formflow/pkg/schema"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Workflow {
	t.Helper()

	registry, err := schema.NewRegistry()
	require.NoError(t, err)

	return NewWorkflow(
		file.NewPersistence(t.TempDir()),
		validator.New(validator.WithRequiredStructEnabled()),
		registry,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func testWorkflow() *models.Workflow {
	formID := "form-1"

	return &models.Workflow{
		Name:      "Purchase approval",
		FormID:    &formID,
		TriggerOn: models.TriggerOnSubmission,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "wait", Type: models.NodeTypeDelay, Data: map[string]any{"seconds": 10}},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "wait"},
			{ID: "e2", Source: "wait", Target: "end"},
		},
	}
}

func TestWorkflow_Create(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	created, err := service.Create(t.Context(), testWorkflow())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Version)
	assert.False(t, created.CreatedAt.IsZero())

	fetched, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, fetched.Name)

	versions, err := service.Versions(t.Context(), created.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)
}

func TestWorkflow_FetchByID_NotFound(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	_, err := service.FetchByID(t.Context(), "missing")
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflow_Validate(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	tests := []struct {
		name   string
		mutate func(*models.Workflow)
		want   error
	}{
		{
			name:   "short name",
			mutate: func(w *models.Workflow) { w.Name = "x" },
			want:   ErrInvalidRequest,
		},
		{
			name:   "unknown trigger",
			mutate: func(w *models.Workflow) { w.TriggerOn = "cron" },
			want:   ErrInvalidRequest,
		},
		{
			name: "two start nodes",
			mutate: func(w *models.Workflow) {
				w.Nodes = append(w.Nodes, &models.Node{ID: "start-2", Type: models.NodeTypeStart})
			},
			want: ErrStartNodeRequired,
		},
		{
			name:   "no start node",
			mutate: func(w *models.Workflow) { w.Nodes = w.Nodes[1:] },
			want:   ErrStartNodeRequired,
		},
		{
			name: "duplicate node",
			mutate: func(w *models.Workflow) {
				w.Nodes = append(w.Nodes, &models.Node{ID: "wait", Type: models.NodeTypeEnd})
			},
			want: ErrDuplicateNodeID,
		},
		{
			name: "dangling edge",
			mutate: func(w *models.Workflow) {
				w.Edges = append(w.Edges, &models.Edge{ID: "e3", Source: "wait", Target: "ghost"})
			},
			want: ErrDanglingEdge,
		},
		{
			name:   "invalid node data",
			mutate: func(w *models.Workflow) { w.Nodes[1].Data = map[string]any{"seconds": "soon"} },
			want:   ErrInvalidNodeData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			workflow := testWorkflow()
			tt.mutate(workflow)

			err := service.Validate(workflow)
			require.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidationError(err))
		})
	}

	require.NoError(t, service.Validate(testWorkflow()))
	require.ErrorIs(t, service.Validate(nil), ErrWorkflowNil)
}

func TestWorkflow_UpdateGraphSnapshotsVersions(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	created, err := service.Create(t.Context(), testWorkflow())
	require.NoError(t, err)

	renamed := *created
	renamed.Name = "Renamed workflow"

	updated, err := service.Update(t.Context(), created.ID, &renamed)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version, "metadata change keeps the version")

	for i := range 25 {
		nodes := testWorkflow().Nodes
		nodes[1].Data = map[string]any{"seconds": i + 1}

		updated, err = service.UpdateGraph(t.Context(), created.ID, nodes, testWorkflow().Edges)
		require.NoError(t, err)
	}

	assert.Equal(t, 26, updated.Version)

	versions, err := service.Versions(t.Context(), created.ID)
	require.NoError(t, err)
	require.Len(t, versions, models.MaxRetainedVersions)
	assert.Equal(t, 26, versions[0].Version)
	assert.Equal(t, 7, versions[len(versions)-1].Version)
}

func TestWorkflow_Activation(t *testing.T) {
	t.Parallel()

	service := newTestService(t)

	created, err := service.Create(t.Context(), testWorkflow())
	require.NoError(t, err)

	err = service.RequireActive(t.Context(), created.ID)
	require.ErrorIs(t, err, ErrWorkflowInactive)
	assert.True(t, IsConflictError(err))

	require.NoError(t, service.Activate(t.Context(), created.ID))
	require.NoError(t, service.RequireActive(t.Context(), created.ID))

	require.NoError(t, service.Deactivate(t.Context(), created.ID))
	require.ErrorIs(t, service.RequireActive(t.Context(), created.ID), ErrWorkflowInactive)
}

func TestNode_Types(t *testing.T) {
	t.Parallel()

	registry, err := schema.NewRegistry()
	require.NoError(t, err)

	types := NewNode(registry).Types()
	require.Len(t, types, len(models.NodeTypes))

	for i := 1; i < len(types); i++ {
		assert.Less(t, types[i-1].Type, types[i].Type)
	}

	for _, nodeType := range types {
		assert.Equal(t, "object", nodeType.Schema["type"], fmt.Sprint(nodeType.Type))
	}
}
