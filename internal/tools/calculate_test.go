package tools

import (
	"context"
	"strings"
	"testing"
)

func TestCalculateTool(t *testing.T) {
	tool := NewCalculateTool(nil)
	cases := []struct {
		expr string
		want string
	}{
		{"2+2", "4"},
		{"5*9", "45"},
		{"2^10", "1024"},
		{"(1 + 2) * 3 / 4", "2.25"},
		{"sqrt(16) + abs(-3)", "7"},
		{"max(3, pow(2, 3))", "8"},
		{"round(2.6) + floor(1.9) + ceil(0.1)", "5"},
	}
	for _, c := range cases {
		if err := tool.Validate(map[string]any{"expression": c.expr}); err != nil {
			t.Errorf("%s: unexpected validation error: %v", c.expr, err)
			continue
		}
		out, err := tool.Execute(context.Background(), map[string]any{"expression": c.expr})
		if err != nil || !out.Success {
			t.Errorf("%s: unexpected result %+v, %v", c.expr, out, err)
			continue
		}
		result := out.Result.(map[string]any)
		if result["answer"] != c.want || result["expression"] != c.expr {
			t.Errorf("%s: expected %s, got %v", c.expr, c.want, result)
		}
	}
}

func TestCalculateTool_Failures(t *testing.T) {
	tool := NewCalculateTool(nil)
	for _, expr := range []string{"1/0", "x + 1", "2 > 1"} {
		out, err := tool.Execute(context.Background(), map[string]any{"expression": expr})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", expr, err)
		}
		if out.Success || !strings.HasPrefix(out.Error, "Calculation failed: ") {
			t.Errorf("%s: expected failure, got %+v", expr, out)
		}
	}
}

func TestCalculateTool_ValidateRejects(t *testing.T) {
	tool := NewCalculateTool(nil)
	for _, expr := range []string{"", "   ", "(1 +", strings.Repeat("1+", 300) + "1"} {
		if err := tool.Validate(map[string]any{"expression": expr}); err == nil {
			t.Errorf("expected %q to fail validation", expr)
		}
	}
}

func TestExpressionFunctions_Register(t *testing.T) {
	fns := NewExpressionFunctions()
	fns.Register("double", unary(func(x float64) float64 { return 2 * x }))
	got, err := fns.Evaluate("double(21)")
	if err != nil || got != 42 {
		t.Errorf("expected 42, got %v, %v", got, err)
	}
}
