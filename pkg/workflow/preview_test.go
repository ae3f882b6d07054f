package workflow

import (
	"testing"

	"github.com/dukex/formflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func previewNodeIDs(result *TestResult) []string {
	ids := make([]string, 0, len(result.Steps))
	for _, step := range result.Steps {
		ids = append(ids, step.NodeID)
	}

	return ids
}

func TestTestWorkflow_Linear(t *testing.T) {
	t.Parallel()

	result, err := TestWorkflow(conditionalWorkflow(), map[string]any{"amount": 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "check", "big", "end"}, previewNodeIDs(result))
	assert.IsType(t, models.ConditionConfig{}, result.Steps[1].Config)

	submission, ok := result.Context[models.ContextKeySubmission].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"amount": 3}, submission["data"])

	user, ok := result.Context[models.ContextKeyUser].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "test@example.com", user["email"])
}

func TestTestWorkflow_CycleTerminates(t *testing.T) {
	t.Parallel()

	workflow := graph("wf-cycle",
		[]*models.Node{
			node("start", models.NodeTypeStart, nil),
			node("a", models.NodeTypeDelay, map[string]any{"seconds": 1}),
			node("b", models.NodeTypeDelay, map[string]any{"seconds": 2}),
		},
		edge("start", "a", ""),
		edge("a", "b", ""),
		edge("b", "a", ""),
	)

	result, err := TestWorkflow(workflow, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "a", "b"}, previewNodeIDs(result))
}

func TestTestWorkflow_ReportsInvalidConfig(t *testing.T) {
	t.Parallel()

	workflow := graph("wf-bad",
		[]*models.Node{
			node("start", models.NodeTypeStart, nil),
			node("wait", models.NodeTypeDelay, map[string]any{"seconds": "soon"}),
		},
		edge("start", "wait", ""),
		edge("wait", "missing", ""),
	)

	result, err := TestWorkflow(workflow, nil)
	require.NoError(t, err)

	require.Len(t, result.Steps, 2)
	assert.NotEmpty(t, result.Steps[1].Error)
	assert.Nil(t, result.Steps[1].Config)
}

func TestTestWorkflow_NoStart(t *testing.T) {
	t.Parallel()

	_, err := TestWorkflow(graph("wf", []*models.Node{node("end", models.NodeTypeEnd, nil)}), nil)
	require.ErrorIs(t, err, ErrNoStartNode)
}
