package executor

import (
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/goalrunner"
)

// referencePattern matches "$step_2", "$http.body.price" and similar.
var referencePattern = regexp.MustCompile(`^\$([A-Za-z][A-Za-z0-9_]*)((?:\.[A-Za-z0-9_]+)*)$`)

// resolveReferences replaces string values that reference an earlier
// step's stored output. Unresolvable references are left as written.
func resolveReferences(input map[string]any, ec *goalrunner.ExecutionContext) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = resolveValue(v, ec)
	}
	return out
}

func resolveValue(v any, ec *goalrunner.ExecutionContext) any {
	switch val := v.(type) {
	case string:
		if resolved, ok := lookupReference(val, ec); ok {
			return resolved
		}
		return val
	case map[string]any:
		return resolveReferences(val, ec)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, ec)
		}
		return out
	default:
		return v
	}
}

func lookupReference(s string, ec *goalrunner.ExecutionContext) (any, bool) {
	m := referencePattern.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	current, ok := ec.Output(m[1])
	if !ok {
		return nil, false
	}
	if m[2] == "" {
		return current, true
	}
	for _, field := range strings.Split(strings.TrimPrefix(m[2], "."), ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[field]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
