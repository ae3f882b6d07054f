package condition

// Schema returns the JSON schema for condition node data.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"label": map[string]any{"type": "string"},
			"field": map[string]any{
				"type":        "string",
				"description": "Dotted path into the execution context",
				"minLength":   1,
				"examples":    []string{"submission.data.status", "last_api_response.status"},
			},
			"operator": map[string]any{
				"type": "string",
				"enum": Operators,
			},
			"value": map[string]any{
				"description": "Value compared against the field. Strings support placeholders",
			},
		},
		"required": []string{"field", "operator"},
	}
}
