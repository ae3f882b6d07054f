// Package schema validates node data against the JSON schema of its node type.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/nodes/apicall"
	"github.com/dukex/formflow/pkg/nodes/approvalgate"
	"github.com/dukex/formflow/pkg/nodes/condition"
	"github.com/dukex/formflow/pkg/nodes/delay"
	"github.com/dukex/formflow/pkg/nodes/email"
	"github.com/dukex/formflow/pkg/nodes/transform"
	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidNodeData = errors.New("invalid node data")

// NodeSchemas returns the raw JSON schema of every node type.
func NodeSchemas() map[models.NodeType]map[string]any {
	passthrough := map[string]any{"type": "object"}

	return map[models.NodeType]map[string]any{
		models.NodeTypeStart:     passthrough,
		models.NodeTypeEnd:       passthrough,
		models.NodeTypeAPICall:   apicall.Schema(),
		models.NodeTypeApproval:  approvalgate.Schema(),
		models.NodeTypeCondition: condition.Schema(),
		models.NodeTypeTransform: transform.Schema(),
		models.NodeTypeEmail:     email.Schema(),
		models.NodeTypeDelay:     delay.Schema(),
	}
}

// Registry holds the compiled schemas.
type Registry struct {
	raw      map[models.NodeType]map[string]any
	compiled map[models.NodeType]*gojsonschema.Schema
}

func NewRegistry() (*Registry, error) {
	raw := NodeSchemas()
	compiled := make(map[models.NodeType]*gojsonschema.Schema, len(raw))

	for nodeType, definition := range raw {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(definition))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", nodeType, err)
		}

		compiled[nodeType] = s
	}

	return &Registry{raw: raw, compiled: compiled}, nil
}

// Schema returns the raw schema of nodeType.
func (r *Registry) Schema(nodeType models.NodeType) (map[string]any, bool) {
	s, ok := r.raw[nodeType]

	return s, ok
}

// ValidateNode checks the node data against the schema of its type.
func (r *Registry) ValidateNode(node *models.Node) error {
	compiled, ok := r.compiled[node.Type]
	if !ok {
		return fmt.Errorf("node %s: %w: %q", node.ID, models.ErrUnknownNodeType, node.Type)
	}

	data := node.Data
	if data == nil {
		data = map[string]any{}
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("node %s: %w", node.ID, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("%w: node %s (%s): %s", ErrInvalidNodeData, node.ID, node.Type, strings.Join(messages, "; "))
	}

	return nil
}
