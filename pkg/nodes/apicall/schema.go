package apicall

// Schema returns the JSON schema for api_call node data.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"label": map[string]any{"type": "string"},
			"url": map[string]any{
				"type":        "string",
				"description": "Request URL. Supports {{dotted.path}} placeholders",
				"minLength":   1,
				"examples": []string{
					"https://api.example.com/leads",
					"https://crm.example.com/contacts/{{submission.data.contact_id}}",
				},
			},
			"method": map[string]any{
				"type":    "string",
				"default": "GET",
				"enum":    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "get", "post", "put", "patch", "delete"},
			},
			"headers": map[string]any{
				"type":                 "object",
				"description":          "Header names and values. Both support placeholders",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{
				"description": "Request body. Strings are sent as is after interpolation, objects are JSON encoded",
				"type":        []string{"string", "object", "array", "null"},
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Request timeout in seconds",
				"default":     30,
				"minimum":     1,
				"maximum":     600,
			},
			"retry_count": map[string]any{
				"type":        "integer",
				"description": "Additional attempts after a failed request",
				"default":     0,
				"minimum":     0,
				"maximum":     MaxRetries,
			},
			"retry_delay": map[string]any{
				"type":        "integer",
				"description": "Seconds to wait between attempts",
				"default":     0,
				"minimum":     0,
				"maximum":     60,
			},
			"async":      map[string]any{"type": "boolean", "default": false},
			"verify_ssl": map[string]any{"type": "boolean", "default": true},
		},
		"required": []string{"url"},
	}
}
