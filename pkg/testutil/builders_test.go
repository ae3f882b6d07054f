package testutil

import (
	"testing"

	"github.com/dukex/formflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestCreateTestWorkflow_Defaults(t *testing.T) {
	t.Parallel()

	workflow := CreateTestWorkflow()

	assert.NotEmpty(t, workflow.ID)
	assert.True(t, workflow.Active)
	assert.Len(t, workflow.Nodes, 2)
	assert.Len(t, workflow.Edges, 1)
}

func TestWithSteps_ChainsNodes(t *testing.T) {
	t.Parallel()

	workflow := CreateTestWorkflow(
		WithID("wf-chain"),
		WithSteps(
			CreateTestNode("a", models.NodeTypeDelay, map[string]any{"seconds": 1}),
			CreateTestNode("b", models.NodeTypeDelay, map[string]any{"seconds": 2}),
		),
	)

	assert.Equal(t, "wf-chain", workflow.ID)
	assert.Len(t, workflow.Nodes, 4)

	targets := make([]string, 0, len(workflow.Edges))
	for _, edge := range workflow.Edges {
		targets = append(targets, edge.Source+">"+edge.Target)
	}

	assert.Equal(t, []string{"start>a", "a>b", "b>end"}, targets)
}
