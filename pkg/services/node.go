package services

import (
	"sort"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/schema"
)

// NodeType describes a node type for the workflow editor.
type NodeType struct {
	Type   models.NodeType `json:"type"`
	Schema map[string]any  `json:"schema"`
}

// Node lists the node types the engine can execute.
type Node struct {
	schemas *schema.Registry
}

func NewNode(schemas *schema.Registry) *Node {
	return &Node{schemas: schemas}
}

// Types returns every node type with its data schema, ordered by type name.
func (n *Node) Types() []NodeType {
	types := make([]NodeType, 0, len(models.NodeTypes))

	for _, nodeType := range models.NodeTypes {
		definition, ok := n.schemas.Schema(nodeType)
		if !ok {
			continue
		}

		types = append(types, NodeType{Type: nodeType, Schema: definition})
	}

	sort.Slice(types, func(i, j int) bool {
		return types[i].Type < types[j].Type
	})

	return types
}
