package goalrunner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
)

const (
	liveDataFailurePrefix = "Unable to retrieve live data: "
	failurePrefix         = "Execution failed: "
	noErrorDetails        = "No error details were provided"
	noStepsMessage        = "No steps were executed for this goal."
	emptyContent          = "No content returned."
)

// deterministicKeywords matches whole words only, so "sum" does not match
// "summarize".
var deterministicKeywords = regexp.MustCompile(
	`\b(calculate|calculation|compute|sum|math|arithmetic|code|algorithm|convert|formula|equation|solve)\b`)

var arithmeticPattern = regexp.MustCompile(`\d\s*[-+*/x^]\s*\d`)

// BuildSummary derives the execution summary from the steps recorded so far.
func BuildSummary(steps []ExecutedStep, startedAt, now time.Time) ExecutionSummary {
	summary := ExecutionSummary{
		ToolsUsed:  toolsUsed(steps),
		DurationMS: now.Sub(startedAt).Milliseconds(),
	}
	for _, step := range steps {
		if !step.Success {
			summary.FailedSteps++
		}
		if step.ToolName == ToolReasoning {
			summary.ReasoningSteps++
		}
	}
	return summary
}

// ResolveFinalResult computes the user-facing result of a run. runErr is the
// run-level error message, empty when the run did not fail.
func ResolveFinalResult(goal string, steps []ExecutedStep, runErr string) FinalResult {
	used := toolsUsed(steps)

	failed := runErr != ""
	for _, step := range steps {
		if !step.Success {
			failed = true
			break
		}
	}
	if failed {
		detail := runErr
		if detail == "" && len(steps) > 0 {
			detail = steps[len(steps)-1].Error
		}
		if detail == "" {
			detail = noErrorDetails
		}
		prefix := failurePrefix
		if contains(used, ToolHTTP) {
			prefix = liveDataFailurePrefix
		}
		return FinalResult{Content: prefix + detail, Source: SourceToolFailure, Confidence: ConfidenceLow}
	}

	if len(steps) == 0 {
		return FinalResult{Content: noStepsMessage, Source: SourceToolFailure, Confidence: ConfidenceLow}
	}

	source := SourceMixed
	if len(used) == 1 {
		switch used[0] {
		case ToolReasoning:
			source = SourceReasoningOnly
		case ToolHTTP:
			source = SourceHTTP
		}
	}

	confidence := ConfidenceHigh
	if source == SourceReasoningOnly && !isDeterministicGoal(goal) {
		confidence = ConfidenceMedium
	}

	return FinalResult{
		Content:    extractContent(steps[len(steps)-1].Output),
		Source:     source,
		Confidence: confidence,
	}
}

// extractContent prefers answer, then message, then body, then the whole
// output serialized. A plain string is used verbatim.
func extractContent(output any) string {
	switch v := output.(type) {
	case string:
		return v
	case map[string]any:
		for _, field := range []string{"answer", "message"} {
			if value, ok := v[field]; ok && schema.HasValue(value) {
				return unwrap(value)
			}
		}
		if body, ok := v["body"]; ok {
			return unwrap(body)
		}
		return serialize(v)
	default:
		return unwrap(v)
	}
}

// unwrap renders a nested value: empty becomes a placeholder, structures are
// serialized, and scalars are printed.
func unwrap(v any) string {
	if !schema.HasValue(v) {
		return emptyContent
	}
	switch val := v.(type) {
	case string:
		return val
	case map[string]any, []any:
		return serialize(val)
	case bool, float64, float32, int, int64, int32:
		return fmt.Sprint(val)
	default:
		return serialize(val)
	}
}

func serialize(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

func isDeterministicGoal(goal string) bool {
	text := strings.ToLower(goal)
	return deterministicKeywords.MatchString(text) || arithmeticPattern.MatchString(text)
}

// toolsUsed returns distinct tool names in first-use order.
func toolsUsed(steps []ExecutedStep) []string {
	out := []string{}
	seen := make(map[string]bool, len(steps))
	for _, step := range steps {
		if !seen[step.ToolName] {
			seen[step.ToolName] = true
			out = append(out, step.ToolName)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
