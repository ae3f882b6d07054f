// Package delay postpones the next step of an execution.
package delay

import "github.com/dukex/formflow/pkg/models"

// MaxSeconds caps a single delay at one hour.
const MaxSeconds = 3600

// Execute reports the clamped delay. The driver schedules the next step; nothing sleeps here.
func Execute(exec *models.Execution, node *models.Node, config models.DelayConfig) models.StepOutcome {
	seconds := max(0, min(config.Seconds, MaxSeconds))

	exec.AppendLog("Delay scheduled", map[string]any{"node_id": node.ID, "seconds": seconds})

	return models.StepOutcome{Success: true, DelaySeconds: seconds}
}

// Schema returns the JSON schema for delay node data.
func Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"label": map[string]any{"type": "string"},
			"seconds": map[string]any{
				"type":        "integer",
				"description": "Seconds to wait before the next step. Values above one hour are capped",
				"minimum":     0,
			},
		},
		"required": []string{"seconds"},
	}
}
