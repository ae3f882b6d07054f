package schema

import (
	"testing"

	"github.com/dukex/formflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_CoversEveryNodeType(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry()
	require.NoError(t, err)

	for _, nodeType := range models.NodeTypes {
		_, ok := registry.Schema(nodeType)
		assert.True(t, ok, "missing schema for %s", nodeType)
	}
}

func TestRegistry_ValidateNode(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry()
	require.NoError(t, err)

	tests := []struct {
		name    string
		node    *models.Node
		wantErr bool
	}{
		{
			name: "start without data",
			node: &models.Node{ID: "s", Type: models.NodeTypeStart},
		},
		{
			name: "api call",
			node: &models.Node{ID: "a", Type: models.NodeTypeAPICall, Data: map[string]any{
				"url":         "https://example.com",
				"method":      "POST",
				"body":        map[string]any{"x": 1},
				"retry_count": 2,
			}},
		},
		{
			name:    "api call without url",
			node:    &models.Node{ID: "a", Type: models.NodeTypeAPICall, Data: map[string]any{"method": "GET"}},
			wantErr: true,
		},
		{
			name:    "api call too many retries",
			node:    &models.Node{ID: "a", Type: models.NodeTypeAPICall, Data: map[string]any{"url": "https://x", "retry_count": 50}},
			wantErr: true,
		},
		{
			name: "condition",
			node: &models.Node{ID: "c", Type: models.NodeTypeCondition, Data: map[string]any{
				"field": "status", "operator": "equals", "value": "approved",
			}},
		},
		{
			name:    "condition bad operator",
			node:    &models.Node{ID: "c", Type: models.NodeTypeCondition, Data: map[string]any{"field": "status", "operator": "like"}},
			wantErr: true,
		},
		{
			name: "transform",
			node: &models.Node{ID: "t", Type: models.NodeTypeTransform, Data: map[string]any{
				"transformations": []any{map[string]any{"source": "a", "operation": "trim"}},
			}},
		},
		{
			name:    "email without subject or template",
			node:    &models.Node{ID: "e", Type: models.NodeTypeEmail, Data: map[string]any{"to": "a@b.c"}},
			wantErr: true,
		},
		{
			name: "email with template",
			node: &models.Node{ID: "e", Type: models.NodeTypeEmail, Data: map[string]any{"template_id": "welcome"}},
		},
		{
			name:    "approval without approver",
			node:    &models.Node{ID: "p", Type: models.NodeTypeApproval, Data: map[string]any{}},
			wantErr: true,
		},
		{
			name: "delay",
			node: &models.Node{ID: "d", Type: models.NodeTypeDelay, Data: map[string]any{"seconds": 90}},
		},
		{
			name:    "unknown type",
			node:    &models.Node{ID: "x", Type: "webhook"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := registry.ValidateNode(tt.node)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
