// Package testutil provides test data builders for workflows and submissions.
package testutil

import (
	"github.com/dukex/formflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestWorkflow builds an active submission workflow for form-1 whose graph is a
// single start node connected to an end node. Overrides run in order.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	formID := "form-1"

	workflow := &models.Workflow{
		ID:        uuid.New().String(),
		Name:      "Test Workflow",
		FormID:    &formID,
		TriggerOn: models.TriggerOnSubmission,
		Active:    true,
		Version:   1,
		Nodes: []*models.Node{
			CreateTestNode("start", models.NodeTypeStart, nil),
			CreateTestNode("end", models.NodeTypeEnd, nil),
		},
		Edges: []*models.Edge{CreateTestEdge("start", "end", "")},
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithID sets the workflow identifier.
func WithID(id string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.ID = id
	}
}

// WithGraph replaces nodes and edges.
func WithGraph(nodes []*models.Node, edges ...*models.Edge) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Nodes = nodes
		w.Edges = edges
	}
}

// WithSteps chains the given nodes between start and end.
func WithSteps(steps ...*models.Node) func(*models.Workflow) {
	return func(w *models.Workflow) {
		nodes := []*models.Node{CreateTestNode("start", models.NodeTypeStart, nil)}
		nodes = append(nodes, steps...)
		nodes = append(nodes, CreateTestNode("end", models.NodeTypeEnd, nil))

		edges := make([]*models.Edge, 0, len(nodes)-1)
		for i := 1; i < len(nodes); i++ {
			edges = append(edges, CreateTestEdge(nodes[i-1].ID, nodes[i].ID, ""))
		}

		w.Nodes = nodes
		w.Edges = edges
	}
}

func Inactive() func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Active = false
	}
}

func CreateTestNode(id string, nodeType models.NodeType, data map[string]any) *models.Node {
	return &models.Node{ID: id, Type: nodeType, Data: data}
}

func CreateTestEdge(source, target, handle string) *models.Edge {
	return &models.Edge{ID: source + "-" + target, Source: source, Target: target, SourceHandle: handle}
}

// CreateTestSubmission builds a submission of form-1 by a fixed user.
func CreateTestSubmission(data map[string]any) *models.Submission {
	return &models.Submission{
		ID:     uuid.New().String(),
		FormID: "form-1",
		Form:   &models.Form{ID: "form-1", Name: "Test Form"},
		Data:   data,
		User:   &models.User{ID: "1", Name: "Test User", Email: "test@example.com", Login: "test"},
	}
}
