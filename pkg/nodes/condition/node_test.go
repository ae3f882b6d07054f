package condition

import (
	"testing"

	"github.com/dukex/formflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	ctx := map[string]any{
		"status": "approved",
		"submission": map[string]any{
			"data": map[string]any{
				"amount":  "1500.50",
				"count":   float64(3),
				"comment": "Please RUSH this order",
				"empty":   "  ",
				"tags":    []any{},
			},
		},
		"threshold": float64(1000),
	}

	tests := []struct {
		name   string
		config models.ConditionConfig
		want   bool
	}{
		{"equals string", models.ConditionConfig{Field: "status", Operator: "equals", Value: "approved"}, true},
		{"equals mismatch", models.ConditionConfig{Field: "status", Operator: "equals", Value: "rejected"}, false},
		{"equals numeric", models.ConditionConfig{Field: "submission.data.count", Operator: "equals", Value: "3"}, true},
		{"equals missing", models.ConditionConfig{Field: "nope", Operator: "equals", Value: ""}, false},
		{"not equals", models.ConditionConfig{Field: "status", Operator: "not_equals", Value: "rejected"}, true},
		{"not equals missing", models.ConditionConfig{Field: "nope", Operator: "not_equals", Value: "x"}, true},
		{"contains case insensitive", models.ConditionConfig{Field: "submission.data.comment", Operator: "contains", Value: "rush"}, true},
		{"contains absent", models.ConditionConfig{Field: "submission.data.comment", Operator: "contains", Value: "later"}, false},
		{"greater than", models.ConditionConfig{Field: "submission.data.amount", Operator: "greater_than", Value: 1000}, true},
		{"greater than placeholder", models.ConditionConfig{Field: "submission.data.amount", Operator: "greater_than", Value: "{{threshold}}"}, true},
		{"less than", models.ConditionConfig{Field: "submission.data.count", Operator: "less_than", Value: 2}, false},
		{"less than non numeric", models.ConditionConfig{Field: "status", Operator: "less_than", Value: 2}, false},
		{"is empty whitespace", models.ConditionConfig{Field: "submission.data.empty", Operator: "is_empty"}, true},
		{"is empty slice", models.ConditionConfig{Field: "submission.data.tags", Operator: "is_empty"}, true},
		{"is empty missing", models.ConditionConfig{Field: "nope", Operator: "is_empty"}, true},
		{"is not empty", models.ConditionConfig{Field: "status", Operator: "is_not_empty"}, true},
		{"braced field", models.ConditionConfig{Field: "{{ status }}", Operator: "equals", Value: "approved"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Evaluate(tt.config, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	t.Parallel()

	_, err := Evaluate(models.ConditionConfig{Field: "a", Operator: "matches"}, map[string]any{})

	require.Error(t, err)
}

func TestExecute_Branches(t *testing.T) {
	t.Parallel()

	node := &models.Node{ID: "check", Type: models.NodeTypeCondition}
	config := models.ConditionConfig{Field: "status", Operator: "equals", Value: "approved"}

	approved := &models.Execution{Context: map[string]any{"status": "approved"}}
	outcome := Execute(approved, node, config)

	assert.True(t, outcome.Success)
	assert.Equal(t, models.BranchTrue, outcome.Branch)
	assert.Equal(t, "Condition evaluated", approved.Logs[0].Message)

	rejected := &models.Execution{Context: map[string]any{"status": "rejected"}}
	outcome = Execute(rejected, node, config)

	assert.True(t, outcome.Success)
	assert.Equal(t, models.BranchFalse, outcome.Branch)
}

func TestExecute_InvalidOperatorFails(t *testing.T) {
	t.Parallel()

	exec := &models.Execution{Context: map[string]any{}}
	outcome := Execute(exec, &models.Node{ID: "check"}, models.ConditionConfig{Field: "x", Operator: "regex"})

	assert.False(t, outcome.Success)
	assert.Empty(t, outcome.Branch)
	assert.Equal(t, "Condition failed", exec.Logs[0].Message)
}
