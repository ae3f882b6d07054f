package workflow

import (
	"github.com/dukex/formflow/pkg/models"
)

// PreviewStep is one node visited by a dry run.
type PreviewStep struct {
	NodeID string            `json:"node_id"`
	Type   models.NodeType   `json:"type"`
	Label  string            `json:"label"`
	Config models.NodeConfig `json:"config,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// TestResult is the outcome of TestWorkflow.
type TestResult struct {
	Steps   []PreviewStep  `json:"steps"`
	Context map[string]any `json:"context"`
}

// TestWorkflow walks the graph from the start node following the first outgoing
// edge of each node, without executing anything. Each node is visited at most
// once so cyclic graphs terminate.
func TestWorkflow(workflow *models.Workflow, sample map[string]any) (*TestResult, error) {
	start, ok := workflow.StartNode()
	if !ok {
		return nil, ErrNoStartNode
	}

	result := &TestResult{
		Steps:   make([]PreviewStep, 0, len(workflow.Nodes)),
		Context: sampleContext(workflow, sample),
	}

	visited := make(map[string]bool, len(workflow.Nodes))
	node := start

	for node != nil && !visited[node.ID] {
		visited[node.ID] = true

		step := PreviewStep{NodeID: node.ID, Type: node.Type, Label: node.Label()}

		config, err := models.ParseNodeConfig(node)
		if err != nil {
			step.Error = err.Error()
		} else {
			step.Config = config
		}

		result.Steps = append(result.Steps, step)

		if node.Type == models.NodeTypeEnd {
			break
		}

		edge, ok := workflow.NextEdge(node.ID, "")
		if !ok {
			break
		}

		node, _ = workflow.NodeByID(edge.Target)
	}

	return result, nil
}

func sampleContext(workflow *models.Workflow, sample map[string]any) map[string]any {
	if sample == nil {
		sample = map[string]any{}
	}

	formID := ""
	if workflow.FormID != nil {
		formID = *workflow.FormID
	}

	submission := &models.Submission{
		ID:     "test",
		FormID: formID,
		Form:   &models.Form{ID: formID, Name: workflow.Name},
		Data:   sample,
		User: &models.User{
			ID:    "0",
			Name:  "Test User",
			Email: "test@example.com",
			Login: "test",
		},
	}

	return submission.SeedContext()
}
