package planner

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/goalrunner"
)

var reasoningKeywords = []string{
	"explain", "define", "what is", "why", "how", "summarize", "compare", "list",
}

var toolKeywords = []string{
	"current", "latest", "today", "price", "stock", "weather", "news",
	"real-time", "rate", "fetch", "lookup", "api", "http", "url",
}

// liveDataIndicators in caller context force the tool signal.
var liveDataIndicators = []string{"http", "api", "key"}

// ClassifyIntent keyword-matches goal and the caller context values.
// The result is advisory and never gates execution.
func ClassifyIntent(goal string, userContext map[string]any) goalrunner.Intent {
	goalText := strings.ToLower(goal)
	hasReasoning := containsAny(goalText, reasoningKeywords)
	hasTool := containsAny(goalText, toolKeywords)

	values := make([]string, 0, len(userContext))
	for _, v := range userContext {
		values = append(values, strings.ToLower(fmt.Sprint(v)))
	}
	if containsAny(strings.Join(values, " "), liveDataIndicators) {
		hasTool = true
	}

	switch {
	case hasTool && hasReasoning:
		return goalrunner.IntentMixed
	case hasTool:
		return goalrunner.IntentToolRequired
	default:
		return goalrunner.IntentReasoningOnly
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
