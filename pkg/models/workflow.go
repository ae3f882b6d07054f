// Package models defines the core domain models for form workflows and their executions.
package models

import "time"

// TriggerOn identifies the event that starts a workflow.
type TriggerOn string

const (
	TriggerOnSubmission TriggerOn = "submission" // Started when a form submission is stored
	TriggerOnApproval   TriggerOn = "approval"   // Started by an approval outcome of another workflow
	TriggerOnManual     TriggerOn = "manual"     // Started explicitly by an administrator
)

// MaxRetainedVersions bounds the number of version snapshots kept per workflow.
const MaxRetainedVersions = 20

// Workflow is a versioned graph of typed nodes bound to one form, or global when FormID is nil.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"                 validate:"required,min=3"`
	Description string    `json:"description"`
	FormID      *string   `json:"form_id,omitempty"`
	FormIDs     []string  `json:"form_ids,omitempty"` // Forms a global workflow listens to
	TriggerOn   TriggerOn `json:"trigger_on"           validate:"required,oneof=submission approval manual"`
	Active      bool      `json:"active"`
	Version     int       `json:"version"`
	Nodes       []*Node   `json:"nodes"                validate:"required,min=1,dive"`
	Edges       []*Edge   `json:"edges"                validate:"dive"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkflowVersion is an immutable snapshot of a workflow graph.
type WorkflowVersion struct {
	WorkflowID string    `json:"workflow_id"`
	Version    int       `json:"version"`
	Nodes      []*Node   `json:"nodes"`
	Edges      []*Edge   `json:"edges"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsGlobal reports whether the workflow is not bound to a single form.
func (w *Workflow) IsGlobal() bool {
	return w.FormID == nil || *w.FormID == ""
}

// AppliesToForm reports whether a submission of formID can start this workflow.
func (w *Workflow) AppliesToForm(formID string) bool {
	if !w.IsGlobal() {
		return *w.FormID == formID
	}

	for _, id := range w.FormIDs {
		if id == formID {
			return true
		}
	}

	return false
}

// StartNode returns the node of type start.
func (w *Workflow) StartNode() (*Node, bool) {
	for _, node := range w.Nodes {
		if node.Type == NodeTypeStart {
			return node, true
		}
	}

	return nil, false
}

// NodeByID finds a node by its identifier.
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// OutgoingEdges returns the edges leaving nodeID in declaration order.
func (w *Workflow) OutgoingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range w.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// NextEdge selects the edge to follow from nodeID. With a branch, only edges whose
// SourceHandle equals the branch qualify; otherwise the first outgoing edge wins.
func (w *Workflow) NextEdge(nodeID, branch string) (*Edge, bool) {
	for _, edge := range w.OutgoingEdges(nodeID) {
		if branch == "" || edge.SourceHandle == branch {
			return edge, true
		}
	}

	return nil, false
}

// Snapshot captures the current graph as a version record.
func (w *Workflow) Snapshot(at time.Time) *WorkflowVersion {
	return &WorkflowVersion{
		WorkflowID: w.ID,
		Version:    w.Version,
		Nodes:      w.Nodes,
		Edges:      w.Edges,
		CreatedAt:  at,
	}
}
