package planner

import (
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/goalrunner"
)

func TestClassifyIntent(t *testing.T) {
	cases := []struct {
		goal string
		ctx  map[string]any
		want goalrunner.Intent
	}{
		{"What is 2+2?", nil, goalrunner.IntentReasoningOnly},
		{"Remember my name", nil, goalrunner.IntentReasoningOnly},
		{"Get the current weather in Paris", nil, goalrunner.IntentToolRequired},
		{"Explain the latest news", nil, goalrunner.IntentMixed},
		{"Summarize this", map[string]any{"source": "https://example.com"}, goalrunner.IntentMixed},
		{"Do it", map[string]any{"token": "API-123"}, goalrunner.IntentToolRequired},
	}
	for _, c := range cases {
		if got := ClassifyIntent(c.goal, c.ctx); got != c.want {
			t.Errorf("ClassifyIntent(%q, %v) = %s, want %s", c.goal, c.ctx, got, c.want)
		}
	}
}

func TestInferMemoryKey(t *testing.T) {
	a := InferMemoryKey("Store My Result!!")
	b := InferMemoryKey("store my result")
	if a != b {
		t.Errorf("expected equal keys, got %q and %q", a, b)
	}
	if a != "store_my_result" {
		t.Errorf("unexpected key %q", a)
	}
	if InferMemoryKey(a) != a {
		t.Errorf("key derivation is not idempotent for %q", a)
	}
	if got := InferMemoryKey("!!!"); got != "result" {
		t.Errorf("expected fallback key, got %q", got)
	}
	long := InferMemoryKey(strings.Repeat("abc ", 30))
	if len(long) > 40 {
		t.Errorf("expected at most 40 characters, got %d", len(long))
	}
	if strings.ToLower(long) != long || strings.Contains(long, "__") {
		t.Errorf("unexpected key format %q", long)
	}
}
