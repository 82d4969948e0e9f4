package planner

import (
	"strings"
	"unicode"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
	"github.com/ZanzyTHEbar/goalrunner/internal/tools"
)

const maxMemoryKeyLength = 40

// InferMemoryKey derives a stable storage key from goal text: lower-cased,
// non-alphanumeric runs collapsed to one underscore, trimmed, at most 40
// characters, "result" when nothing is left.
func InferMemoryKey(goal string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range goal {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}
	key := []rune(b.String())
	if len(key) > maxMemoryKeyLength {
		key = key[:maxMemoryKeyLength]
	}
	if len(key) == 0 {
		return "result"
	}
	return string(key)
}

// inferInput fills tool-specific defaults that can be derived from the goal.
func inferInput(toolName, goal string, input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = v
	}

	switch toolName {
	case goalrunner.ToolReasoning:
		if !schema.HasValue(out["question"]) {
			out["question"] = goal
		}
	case goalrunner.ToolMemory:
		if !schema.HasValue(out["action"]) {
			if strings.Contains(strings.ToLower(goal), "retrieve") {
				out["action"] = "retrieve"
			} else {
				out["action"] = "store"
			}
		}
		if !schema.HasValue(out["key"]) {
			out["key"] = InferMemoryKey(goal)
		}
	case goalrunner.ToolHTTP:
		out = tools.NormalizeHTTPInput(out)
	}
	return out
}
