// Package transform applies the ordered context mutations of a transform node.
package transform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/template"
)

// MaxJSONDepth bounds the nesting accepted by json_encode and json_decode.
const MaxJSONDepth = 32

const (
	OperationCopy       = "copy"
	OperationUppercase  = "uppercase"
	OperationLowercase  = "lowercase"
	OperationTrim       = "trim"
	OperationJSONEncode = "json_encode"
	OperationJSONDecode = "json_decode"
)

var Operations = []string{
	OperationCopy,
	OperationUppercase,
	OperationLowercase,
	OperationTrim,
	OperationJSONEncode,
	OperationJSONDecode,
}

var (
	ErrTooDeep          = fmt.Errorf("json nesting exceeds %d levels", MaxJSONDepth)
	ErrUnknownOperation = errors.New("unknown transform operation")
)

// Execute applies each transformation in order and stops at the first failing one.
// Mutations applied before the failure are kept.
func Execute(exec *models.Execution, node *models.Node, config models.TransformConfig) models.StepOutcome {
	applied := 0

	for i, tr := range config.Transformations {
		source := path(tr.Source)
		target := path(tr.Target)

		if target == "" {
			target = source
		}

		value, ok := template.Lookup(exec.Context, source)
		if !ok {
			exec.AppendLog("Transform source missing", map[string]any{"node_id": node.ID, "source": source})

			continue
		}

		result, err := Apply(tr.Operation, value)
		if err != nil {
			exec.AppendLog("Transform failed", map[string]any{
				"node_id":   node.ID,
				"index":     i,
				"operation": tr.Operation,
				"error":     err.Error(),
			})

			return models.StepOutcome{Success: false, Message: err.Error()}
		}

		template.Set(exec.Context, target, result)
		applied++
	}

	exec.AppendLog("Transform applied", map[string]any{"node_id": node.ID, "applied": applied})

	return models.StepOutcome{Success: true}
}

// Apply runs one operation on value.
func Apply(operation string, value any) (any, error) {
	switch operation {
	case OperationCopy, "":
		return value, nil
	case OperationUppercase:
		return strings.ToUpper(template.Stringify(value)), nil
	case OperationLowercase:
		return strings.ToLower(template.Stringify(value)), nil
	case OperationTrim:
		return strings.TrimSpace(template.Stringify(value)), nil
	case OperationJSONEncode:
		if depth(value, 0) > MaxJSONDepth {
			return nil, ErrTooDeep
		}

		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("json_encode: %w", err)
		}

		return string(encoded), nil
	case OperationJSONDecode:
		return decode(template.Stringify(value))
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownOperation, operation)
	}
}

func decode(raw string) (any, error) {
	err := checkDepth([]byte(raw))
	if err != nil {
		return nil, err
	}

	var decoded any

	err = json.Unmarshal([]byte(raw), &decoded)
	if err != nil {
		return nil, fmt.Errorf("json_decode: %w", err)
	}

	return decoded, nil
}

// checkDepth scans the document token by token so a deeply nested payload is
// rejected before it is materialised.
func checkDepth(raw []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	level := 0

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("json_decode: %w", err)
		}

		delim, ok := token.(json.Delim)
		if !ok {
			continue
		}

		switch delim {
		case '{', '[':
			level++
			if level > MaxJSONDepth {
				return ErrTooDeep
			}
		case '}', ']':
			level--
		}
	}
}

// depth measures container nesting of a decoded value, giving up past the limit.
func depth(value any, current int) int {
	if current > MaxJSONDepth {
		return current
	}

	deepest := current

	switch v := value.(type) {
	case map[string]any:
		for _, child := range v {
			deepest = max(deepest, depth(child, current+1))
		}

		if len(v) == 0 {
			deepest = max(deepest, current+1)
		}
	case []any:
		for _, child := range v {
			deepest = max(deepest, depth(child, current+1))
		}

		if len(v) == 0 {
			deepest = max(deepest, current+1)
		}
	}

	return deepest
}

func path(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "{{")
	p = strings.TrimSuffix(p, "}}")

	return strings.TrimSpace(p)
}
