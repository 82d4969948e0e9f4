package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
)

type greetInput struct {
	Name  string `json:"name" jsonschema:"required"`
	Shout bool   `json:"shout,omitempty"`
}

var greetSchema = schema.MustFromStruct(greetInput{})

func greet(ctx context.Context, input map[string]any) (goalrunner.ToolOutput, error) {
	if input["name"] == "boom" {
		return goalrunner.ToolOutput{}, errors.New("fail")
	}
	return goalrunner.ToolOutput{Success: true, Result: "hello " + input["name"].(string)}, nil
}

func TestFuncTool_ExecuteSuccessAndFailure(t *testing.T) {
	tool := NewFuncTool("greet", greetSchema, greet)
	out, err := tool.Execute(context.Background(), map[string]any{"name": "ada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Success || out.Result != "hello ada" {
		t.Errorf("unexpected output: %+v", out)
	}

	if _, err := tool.Execute(context.Background(), map[string]any{"name": "boom"}); err == nil {
		t.Error("expected error for failing function, got nil")
	}

	if _, err := NewFuncTool("nil", greetSchema, nil).Execute(context.Background(), nil); err == nil {
		t.Error("expected error for nil function")
	}
}

func TestFuncTool_Validate(t *testing.T) {
	tool := NewFuncTool("greet", greetSchema, greet, WithValidator(func(input map[string]any) error {
		if input["name"] == "root" {
			return errors.New("reserved name")
		}
		return nil
	}))

	if err := tool.Validate(map[string]any{"name": "ada"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := tool.Validate(map[string]any{"shout": "yes"}); len(schema.Violations(err)) == 0 {
		t.Error("expected structural violations")
	}
	err := tool.Validate(map[string]any{"name": "root"})
	violations := schema.Violations(err)
	if len(violations) != 1 || violations[0] != "reserved name" {
		t.Errorf("expected custom validator violation, got %v", err)
	}
	if err := tool.Validate(nil); err == nil {
		t.Error("expected error for nil input")
	}
}

func TestFuncTool_Describe(t *testing.T) {
	tool := NewFuncTool("greet", greetSchema, greet,
		WithDescription("Greets someone"),
		WithCategory("Social"),
	)
	desc := tool.Describe()
	if desc.Name != "greet" || desc.Description != "Greets someone" || desc.InputSchema != greetSchema {
		t.Errorf("unexpected descriptor: %+v", desc)
	}
	if len(desc.RequiredFields) != 1 || desc.RequiredFields[0] != "name" {
		t.Errorf("expected required fields from schema, got %v", desc.RequiredFields)
	}
	if tool.Category() != "Social" {
		t.Errorf("unexpected category %q", tool.Category())
	}

	overridden := NewFuncTool("greet", greetSchema, greet, WithRequired("name", "shout"))
	if got := overridden.Describe().RequiredFields; len(got) != 2 {
		t.Errorf("expected overridden required fields, got %v", got)
	}
}
