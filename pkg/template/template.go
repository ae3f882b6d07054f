// Package template resolves {{dotted.path}} placeholders against an execution context.
package template

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Escaper transforms a rendered value before it is written into the output.
type Escaper func(string) string

// Interpolate replaces every placeholder in input with the value found at its path.
// Placeholders whose path is absent are left untouched.
func Interpolate(input string, ctx map[string]any) string {
	return InterpolateWith(input, ctx, nil)
}

// InterpolateWith is Interpolate with an escaper applied to each substituted value.
func InterpolateWith(input string, ctx map[string]any, escape Escaper) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := Lookup(ctx, path)
		if !ok || value == nil {
			return match
		}

		rendered := Stringify(value)
		if escape != nil {
			rendered = escape(rendered)
		}

		return rendered
	})
}

// ResolveHeaders interpolates header keys and values. Keys lose trailing colons
// and surrounding whitespace, and headers whose key resolves to empty are dropped.
func ResolveHeaders(headers map[string]string, ctx map[string]any) map[string]string {
	resolved := make(map[string]string, len(headers))

	for key, value := range headers {
		name := strings.TrimSpace(Interpolate(key, ctx))
		name = strings.TrimSpace(strings.TrimRight(name, ":"))

		if name == "" {
			continue
		}

		resolved[name] = Interpolate(value, ctx)
	}

	return resolved
}

// Lookup walks a dotted path through nested maps and slices. Numeric segments index slices.
func Lookup(ctx map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = ctx

	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}

			current = node[index]
		default:
			return nil, false
		}
	}

	return current, true
}

// LookupString returns the value at path rendered as a string, or def when absent.
func LookupString(ctx map[string]any, path, def string) string {
	value, ok := Lookup(ctx, path)
	if !ok || value == nil {
		return def
	}

	return Stringify(value)
}

// Set writes value at path, creating intermediate maps as needed. An intermediate
// segment holding a non-map value is replaced.
func Set(ctx map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := ctx

	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}

		current = next
	}

	current[segments[len(segments)-1]] = value
}

// Stringify renders a context value for substitution. Composite values are JSON encoded.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}

		return string(encoded)
	}
}
