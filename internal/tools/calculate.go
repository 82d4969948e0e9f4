package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/Knetic/govaluate"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
)

const maxExpressionLength = 500

// CalculateInput is the input of the calculate tool.
type CalculateInput struct {
	Expression string `json:"expression" jsonschema:"required" jsonschema_description:"Arithmetic expression to evaluate, e.g. '(5*9)+sqrt(16)'"`
}

var calculateSchema = schema.MustFromStruct(CalculateInput{})

// ExpressionFunctions is the whitelist of functions an expression may call.
type ExpressionFunctions struct {
	mu        sync.RWMutex
	functions map[string]govaluate.ExpressionFunction
}

// NewExpressionFunctions returns a whitelist holding the built-in math
// functions.
func NewExpressionFunctions() *ExpressionFunctions {
	f := &ExpressionFunctions{functions: make(map[string]govaluate.ExpressionFunction)}
	f.Register("sqrt", unary(math.Sqrt))
	f.Register("abs", unary(math.Abs))
	f.Register("floor", unary(math.Floor))
	f.Register("ceil", unary(math.Ceil))
	f.Register("round", unary(math.Round))
	f.Register("pow", binary(math.Pow))
	f.Register("min", binary(math.Min))
	f.Register("max", binary(math.Max))
	return f
}

// Register adds or replaces a whitelisted function.
func (f *ExpressionFunctions) Register(name string, fn govaluate.ExpressionFunction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.functions[name] = fn
}

func (f *ExpressionFunctions) snapshot() map[string]govaluate.ExpressionFunction {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]govaluate.ExpressionFunction, len(f.functions))
	for k, v := range f.functions {
		out[k] = v
	}
	return out
}

// Evaluate parses and evaluates expr. Variables are not allowed and the
// result must be a finite number.
func (f *ExpressionFunctions) Evaluate(expr string) (float64, error) {
	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(normalizeExpression(expr), f.snapshot())
	if err != nil {
		return 0, err
	}
	if vars := parsed.Vars(); len(vars) > 0 {
		return 0, fmt.Errorf("unknown identifier '%s'", vars[0])
	}
	value, err := parsed.Evaluate(nil)
	if err != nil {
		return 0, err
	}
	n, ok := value.(float64)
	if !ok {
		return 0, fmt.Errorf("expression did not produce a number (got %v)", value)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errors.New("result is not a finite number")
	}
	return n, nil
}

// ValidateExpression checks that expr parses.
func (f *ExpressionFunctions) ValidateExpression(expr string) error {
	_, err := govaluate.NewEvaluableExpressionWithFunctions(normalizeExpression(expr), f.snapshot())
	return err
}

// NewCalculateTool creates the calculate tool over the given whitelist. A
// nil whitelist uses the built-in functions.
func NewCalculateTool(functions *ExpressionFunctions) *FuncTool {
	if functions == nil {
		functions = NewExpressionFunctions()
	}
	execute := func(ctx context.Context, input map[string]any) (goalrunner.ToolOutput, error) {
		expr, _ := input["expression"].(string)
		value, err := functions.Evaluate(expr)
		if err != nil {
			return goalrunner.ToolOutput{Success: false, Error: "Calculation failed: " + err.Error()}, nil
		}
		return goalrunner.ToolOutput{
			Success: true,
			Result: map[string]any{
				"answer":     strconv.FormatFloat(value, 'f', -1, 64),
				"expression": expr,
			},
		}, nil
	}
	return NewFuncTool(goalrunner.ToolCalculate, calculateSchema, execute,
		WithDescription("Evaluate an arithmetic expression exactly (supports + - * / ^, parentheses, sqrt, abs, pow, floor, ceil, round, min, max)"),
		WithCategory("Math"),
		WithValidator(func(input map[string]any) error {
			expr, _ := input["expression"].(string)
			if strings.TrimSpace(expr) == "" {
				return errors.New("expression cannot be empty")
			}
			if len(expr) > maxExpressionLength {
				return fmt.Errorf("expression too long (max %d characters)", maxExpressionLength)
			}
			if err := functions.ValidateExpression(expr); err != nil {
				return fmt.Errorf("expression does not parse: %w", err)
			}
			return nil
		}),
	)
}

// normalizeExpression maps common math notation onto govaluate operators.
func normalizeExpression(expr string) string {
	r := strings.NewReplacer("^", "**", "×", "*", "÷", "/")
	return r.Replace(strings.TrimSpace(expr))
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("argument must be a number, got %T", args[0])
		}
		return fn(x), nil
	}
}

func binary(fn func(float64, float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected 2 arguments, got %d", len(args))
		}
		x, ok1 := args[0].(float64)
		y, ok2 := args[1].(float64)
		if !ok1 || !ok2 {
			return nil, errors.New("arguments must be numbers")
		}
		return fn(x, y), nil
	}
}
