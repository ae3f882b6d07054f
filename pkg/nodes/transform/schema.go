package transform

// Schema returns the JSON schema for transform node data.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"label": map[string]any{"type": "string"},
			"transformations": map[string]any{
				"type":        "array",
				"description": "Mutations applied to the execution context in order",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"source":    map[string]any{"type": "string", "minLength": 1},
						"target":    map[string]any{"type": "string"},
						"operation": map[string]any{"type": "string", "enum": Operations},
					},
					"required": []string{"source", "operation"},
				},
			},
		},
		"required": []string{"transformations"},
	}
}
