// Package condition evaluates the comparison of a condition node and picks the branch to follow.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/template"
)

const (
	OperatorEquals      = "equals"
	OperatorNotEquals   = "not_equals"
	OperatorContains    = "contains"
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorIsEmpty     = "is_empty"
	OperatorIsNotEmpty  = "is_not_empty"
)

var Operators = []string{
	OperatorEquals,
	OperatorNotEquals,
	OperatorContains,
	OperatorGreaterThan,
	OperatorLessThan,
	OperatorIsEmpty,
	OperatorIsNotEmpty,
}

// Execute evaluates config against the execution context and returns branch "true" or "false".
// An unknown operator fails the step.
func Execute(exec *models.Execution, node *models.Node, config models.ConditionConfig) models.StepOutcome {
	result, err := Evaluate(config, exec.Context)
	if err != nil {
		exec.AppendLog("Condition failed", map[string]any{"node_id": node.ID, "error": err.Error()})

		return models.StepOutcome{Success: false, Message: err.Error()}
	}

	branch := models.BranchFalse
	if result {
		branch = models.BranchTrue
	}

	exec.AppendLog("Condition evaluated", map[string]any{
		"node_id":  node.ID,
		"field":    config.Field,
		"operator": config.Operator,
		"result":   result,
	})

	return models.StepOutcome{Success: true, Branch: branch}
}

// Evaluate compares the value at config.Field with config.Value.
func Evaluate(config models.ConditionConfig, ctx map[string]any) (bool, error) {
	actual, found := template.Lookup(ctx, fieldPath(config.Field))
	expected := expectedValue(config.Value, ctx)

	switch config.Operator {
	case OperatorEquals:
		return found && equal(actual, expected), nil
	case OperatorNotEquals:
		return !found || !equal(actual, expected), nil
	case OperatorContains:
		return found && strings.Contains(
			strings.ToLower(template.Stringify(actual)),
			strings.ToLower(template.Stringify(expected)),
		), nil
	case OperatorGreaterThan, OperatorLessThan:
		a, okA := number(actual)
		b, okB := number(expected)

		if !found || !okA || !okB {
			return false, nil
		}

		if config.Operator == OperatorGreaterThan {
			return a > b, nil
		}

		return a < b, nil
	case OperatorIsEmpty:
		return isEmpty(actual), nil
	case OperatorIsNotEmpty:
		return !isEmpty(actual), nil
	default:
		return false, fmt.Errorf("unknown condition operator %q", config.Operator)
	}
}

// fieldPath accepts both "submission.data.x" and "{{submission.data.x}}".
func fieldPath(field string) string {
	field = strings.TrimSpace(field)
	field = strings.TrimPrefix(field, "{{")
	field = strings.TrimSuffix(field, "}}")

	return strings.TrimSpace(field)
}

func expectedValue(value any, ctx map[string]any) any {
	if s, ok := value.(string); ok {
		return template.Interpolate(s, ctx)
	}

	return value
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}

	return template.Stringify(a) == template.Stringify(b)
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return f, err == nil
	default:
		return 0, false
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
