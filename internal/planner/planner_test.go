package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/llm"
	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
)

type reasoningInput struct {
	Question string `json:"question" jsonschema:"required" jsonschema_description:"Question to answer"`
}

type memoryInput struct {
	Action string `json:"action" jsonschema:"required" jsonschema_description:"store or retrieve"`
	Key    string `json:"key" jsonschema:"required"`
	Value  any    `json:"value,omitempty"`
}

type stubTool struct {
	name   string
	schema *schema.Schema
}

func (s *stubTool) Describe() goalrunner.ToolDescriptor {
	return goalrunner.ToolDescriptor{Name: s.name, Description: s.name + " tool", RequiredFields: s.schema.Required(), InputSchema: s.schema}
}

func (s *stubTool) Validate(input map[string]any) error { return s.schema.Validate(input) }

func (s *stubTool) Execute(ctx context.Context, input map[string]any) (goalrunner.ToolOutput, error) {
	return goalrunner.ToolOutput{Success: true}, nil
}

type fixedLLM struct {
	content  string
	err      error
	messages []llm.Message
	opts     llm.CallOptions
}

func (f *fixedLLM) Call(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	f.messages = messages
	f.opts = llm.ResolveOptions(opts...)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

type recordingRepairer struct {
	steps []goalrunner.Step
	err   error
}

func (r *recordingRepairer) ValidateAndRepair(ctx context.Context, step goalrunner.Step, goal string, userContext map[string]any) (map[string]any, error) {
	r.steps = append(r.steps, step)
	if r.err != nil {
		return nil, r.err
	}
	return step.InputData, nil
}

func newTestPlanner(t *testing.T, content string) (*Planner, *fixedLLM, *recordingRepairer) {
	t.Helper()
	reg := goalrunner.NewRegistry()
	reg.MustRegister(
		&stubTool{name: "reasoning", schema: schema.MustFromStruct(reasoningInput{})},
		&stubTool{name: "memory", schema: schema.MustFromStruct(memoryInput{})},
	)
	client := &fixedLLM{content: content}
	repairer := &recordingRepairer{}
	return New(client, reg, repairer), client, repairer
}

func TestPlan_BareArrayWithDefaults(t *testing.T) {
	p, client, repairer := newTestPlanner(t, `[{"description": "Answer", "tool_name": "reasoning"}]`)

	steps, err := p.Plan(context.Background(), "Explain recursion", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].StepNumber != 1 {
		t.Errorf("expected default step number 1, got %d", steps[0].StepNumber)
	}
	if steps[0].InputData["question"] != "Explain recursion" {
		t.Errorf("expected question inferred from goal, got %v", steps[0].InputData)
	}
	if len(repairer.steps) != 1 {
		t.Errorf("expected validator to run once, got %d", len(repairer.steps))
	}
	if client.opts.Temperature != DefaultTemperature {
		t.Errorf("expected temperature %v, got %v", DefaultTemperature, client.opts.Temperature)
	}
	if !strings.Contains(client.messages[1].Content, "memory: memory tool") {
		t.Errorf("expected prompt to enumerate tools, got:\n%s", client.messages[1].Content)
	}
}

func TestPlan_StepsObject(t *testing.T) {
	p, _, _ := newTestPlanner(t, `Plan: {"steps": [
		{"step_number": 3, "tool_name": "memory", "input_data": {"value": 42}},
		{"step_number": 4, "tool_name": "memory"}
	]}`)

	steps, err := p.Plan(context.Background(), "Retrieve the saved total", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 2 || steps[0].StepNumber != 3 || steps[1].StepNumber != 4 {
		t.Fatalf("unexpected steps: %+v", steps)
	}
	in := steps[0].InputData
	if in["action"] != "retrieve" {
		t.Errorf("expected action retrieve, got %v", in["action"])
	}
	if in["key"] != "retrieve_the_saved_total" {
		t.Errorf("expected inferred key, got %v", in["key"])
	}
	if in["value"] != 42.0 {
		t.Errorf("expected value preserved, got %v", in["value"])
	}
}

func TestPlan_UnparseableResponse(t *testing.T) {
	p, _, _ := newTestPlanner(t, "I am unable to plan this.")
	_, err := p.Plan(context.Background(), "goal", nil)
	if !goalrunner.IsCode(err, goalrunner.ErrCodePlanParse) {
		t.Errorf("expected PLAN_PARSE_ERROR, got %v", err)
	}
}

func TestPlan_UnknownToolSkipsValidation(t *testing.T) {
	p, _, repairer := newTestPlanner(t, `[{"tool_name": "teleport", "input_data": {}}, {"tool_name": "Reasoning"}]`)
	steps, err := p.Plan(context.Background(), "Why is the sky blue?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected both steps returned, got %d", len(steps))
	}
	if len(repairer.steps) != 1 || repairer.steps[0].ToolName != "Reasoning" {
		t.Errorf("expected only the known tool to be validated, got %+v", repairer.steps)
	}
}

func TestPlan_RepairFailureAborts(t *testing.T) {
	p, _, repairer := newTestPlanner(t, `[{"tool_name": "reasoning"}]`)
	repairer.err = goalrunner.NewRepairExhaustedError("reasoning", []string{"bad"})
	_, err := p.Plan(context.Background(), "goal", nil)
	if !goalrunner.IsCode(err, goalrunner.ErrCodeRepairExhausted) {
		t.Errorf("expected REPAIR_EXHAUSTED, got %v", err)
	}
}

func TestPlan_ModelError(t *testing.T) {
	p, client, _ := newTestPlanner(t, "")
	client.err = errors.New("unavailable")
	_, err := p.Plan(context.Background(), "goal", nil)
	if !goalrunner.IsCode(err, goalrunner.ErrCodeLLM) {
		t.Errorf("expected LLM_ERROR, got %v", err)
	}
}

func TestParseSteps_RejectsMalformedEntries(t *testing.T) {
	if _, err := ParseSteps([]any{"step one"}); err == nil {
		t.Error("expected error for non-object entry")
	}
	if _, err := ParseSteps([]any{map[string]any{"input_data": "x"}}); err == nil {
		t.Error("expected error for non-object input_data")
	}
	if _, err := ParseSteps(7.0); err == nil {
		t.Error("expected error for scalar plan")
	}
	steps, err := ParseSteps(map[string]any{"note": "nothing to do"})
	if err != nil || len(steps) != 0 {
		t.Errorf("expected empty plan, got %v, %v", steps, err)
	}
}

func TestInferInput_HTTPNormalization(t *testing.T) {
	in := inferInput(goalrunner.ToolHTTP, "goal", map[string]any{
		"method":  "post",
		"url":     "https://example.com",
		"body":    "",
		"headers": map[string]any{},
		"timeout": "15",
	})
	if in["method"] != "POST" {
		t.Errorf("expected upper-cased method, got %v", in["method"])
	}
	if _, ok := in["body"]; ok {
		t.Error("expected empty body removed")
	}
	if _, ok := in["headers"]; ok {
		t.Error("expected empty headers removed")
	}
	if in["timeout"] != 15 {
		t.Errorf("expected numeric timeout, got %#v", in["timeout"])
	}
}
