package tools

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
)

// Func is the body of a FuncTool.
type Func func(ctx context.Context, input map[string]any) (goalrunner.ToolOutput, error)

// FuncTool adapts a Go function and an input schema to the goalrunner.Tool
// interface.
type FuncTool struct {
	name        string
	description string
	category    string
	schema      *schema.Schema
	required    []string
	fn          Func
	validator   func(map[string]any) error
}

// ToolOption configures a FuncTool.
type ToolOption func(*FuncTool)

// WithDescription sets the description shown to the planner.
func WithDescription(description string) ToolOption {
	return func(t *FuncTool) {
		t.description = description
	}
}

// WithCategory sets the tool's category.
func WithCategory(category string) ToolOption {
	return func(t *FuncTool) {
		t.category = category
	}
}

// WithRequired overrides the required fields reflected from the schema.
func WithRequired(fields ...string) ToolOption {
	return func(t *FuncTool) {
		t.required = append([]string(nil), fields...)
	}
}

// WithValidator adds a check that runs after structural validation passes.
func WithValidator(validator func(map[string]any) error) ToolOption {
	return func(t *FuncTool) {
		t.validator = validator
	}
}

// NewFuncTool creates a tool named name that validates against inputSchema
// and runs fn.
func NewFuncTool(name string, inputSchema *schema.Schema, fn Func, options ...ToolOption) *FuncTool {
	t := &FuncTool{
		name:   name,
		schema: inputSchema,
		fn:     fn,
	}
	if inputSchema != nil {
		t.required = inputSchema.Required()
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// Describe implements goalrunner.Tool.
func (t *FuncTool) Describe() goalrunner.ToolDescriptor {
	return goalrunner.ToolDescriptor{
		Name:           t.name,
		Description:    t.description,
		RequiredFields: append([]string(nil), t.required...),
		InputSchema:    t.schema,
	}
}

// Validate implements goalrunner.Tool.
func (t *FuncTool) Validate(input map[string]any) error {
	if input == nil {
		return &schema.ValidationError{Violations: []string{"input cannot be nil"}}
	}
	if t.schema != nil {
		if err := t.schema.Validate(input); err != nil {
			return err
		}
	}
	if t.validator != nil {
		if err := t.validator(input); err != nil {
			return &schema.ValidationError{Violations: []string{err.Error()}}
		}
	}
	return nil
}

// Execute implements goalrunner.Tool.
func (t *FuncTool) Execute(ctx context.Context, input map[string]any) (goalrunner.ToolOutput, error) {
	if t.fn == nil {
		return goalrunner.ToolOutput{}, fmt.Errorf("tool function for %s is nil", t.name)
	}
	return t.fn(ctx, input)
}

// Name returns the tool name.
func (t *FuncTool) Name() string { return t.name }

// Category returns the tool category, if any.
func (t *FuncTool) Category() string { return t.category }

var _ goalrunner.Tool = (*FuncTool)(nil)
