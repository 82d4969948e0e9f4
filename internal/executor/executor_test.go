package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
)

type echoInput struct {
	Value any    `json:"value" jsonschema:"required"`
	Label string `json:"label,omitempty"`
}

var echoSchema = schema.MustFromStruct(echoInput{})

// mockTool records calls and delegates to execFunc.
type mockTool struct {
	name     string
	calls    int
	inputs   []map[string]any
	execFunc func(call int, input map[string]any) (goalrunner.ToolOutput, error)
}

func (m *mockTool) Describe() goalrunner.ToolDescriptor {
	return goalrunner.ToolDescriptor{Name: m.name, Description: "mock", RequiredFields: echoSchema.Required(), InputSchema: echoSchema}
}

func (m *mockTool) Validate(input map[string]any) error { return echoSchema.Validate(input) }

func (m *mockTool) Execute(ctx context.Context, input map[string]any) (goalrunner.ToolOutput, error) {
	m.calls++
	m.inputs = append(m.inputs, input)
	if m.execFunc != nil {
		return m.execFunc(m.calls, input)
	}
	return goalrunner.ToolOutput{Success: true, Result: map[string]any{"value": input["value"]}}, nil
}

func newTestExecutor(t *testing.T, tools ...goalrunner.Tool) *StepExecutor {
	t.Helper()
	reg := goalrunner.NewRegistry()
	reg.MustRegister(tools...)
	return New(reg)
}

func newContext() *goalrunner.ExecutionContext {
	return goalrunner.NewExecutionContext("exec-1", "goal", nil)
}

func TestExecute_StoresOutputsByToolAndStep(t *testing.T) {
	tool := &mockTool{name: "echo"}
	e := newTestExecutor(t, tool)
	ec := newContext()

	steps := []goalrunner.Step{{StepNumber: 1, ToolName: "ECHO", InputData: map[string]any{"value": "hi"}}}
	result, err := e.Execute(context.Background(), steps, ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	executed := ec.Steps()
	if len(executed) != 1 || !executed[0].Success || executed[0].Attempts != 1 {
		t.Fatalf("unexpected executed steps: %+v", executed)
	}
	byTool, ok := ec.Output("echo")
	if !ok {
		t.Fatal("expected output stored under tool name")
	}
	byStep, ok := ec.Output("step_1")
	if !ok {
		t.Fatal("expected output stored under step key")
	}
	if byTool.(map[string]any)["value"] != "hi" || byStep.(map[string]any)["value"] != "hi" {
		t.Errorf("unexpected stored outputs: %v / %v", byTool, byStep)
	}
	if result.(map[string]any)["value"] != "hi" {
		t.Errorf("unexpected naive result: %v", result)
	}
}

func TestExecute_MissingToolStopsRun(t *testing.T) {
	tool := &mockTool{name: "echo"}
	e := newTestExecutor(t, tool)
	ec := newContext()

	steps := []goalrunner.Step{
		{StepNumber: 1, ToolName: "echo", InputData: map[string]any{"value": 1}},
		{StepNumber: 2, ToolName: "teleport", InputData: map[string]any{}},
		{StepNumber: 3, ToolName: "echo", InputData: map[string]any{"value": 3}},
	}
	_, err := e.Execute(context.Background(), steps, ec)
	if !goalrunner.IsCode(err, goalrunner.ErrCodeToolNotFound) {
		t.Fatalf("expected TOOL_NOT_FOUND, got %v", err)
	}
	if got := len(ec.Steps()); got >= len(steps) {
		t.Errorf("expected fewer executed steps than planned, got %d", got)
	}
	if tool.calls != 1 {
		t.Errorf("expected later steps to be skipped, tool called %d times", tool.calls)
	}
}

func TestExecute_StructuralViolationIsNotRetried(t *testing.T) {
	tool := &mockTool{name: "echo"}
	e := newTestExecutor(t, tool)
	ec := newContext()

	_, err := e.Execute(context.Background(), []goalrunner.Step{{StepNumber: 1, ToolName: "echo", InputData: map[string]any{"label": 5}}}, ec)
	if !goalrunner.IsCode(err, goalrunner.ErrCodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if tool.calls != 0 {
		t.Errorf("tool should not be called, got %d calls", tool.calls)
	}
	if len(ec.Steps()) != 0 {
		t.Errorf("expected no executed-step records, got %d", len(ec.Steps()))
	}
}

func TestExecute_RetryCeiling(t *testing.T) {
	for _, maxRetries := range []int{1, 3, 5} {
		tool := &mockTool{name: "echo", execFunc: func(call int, input map[string]any) (goalrunner.ToolOutput, error) {
			return goalrunner.ToolOutput{Success: false, Error: "service unavailable"}, nil
		}}
		reg := goalrunner.NewRegistry()
		reg.MustRegister(tool)
		e := New(reg, WithMaxRetries(maxRetries))
		ec := newContext()

		steps := []goalrunner.Step{
			{StepNumber: 1, ToolName: "echo", InputData: map[string]any{"value": 1}},
			{StepNumber: 2, ToolName: "echo", InputData: map[string]any{"value": 2}},
		}
		_, err := e.Execute(context.Background(), steps, ec)
		if !goalrunner.IsCode(err, goalrunner.ErrCodeToolExecution) {
			t.Fatalf("expected TOOL_EXECUTION_ERROR, got %v", err)
		}
		if tool.calls != maxRetries {
			t.Errorf("max_retries=%d: expected %d calls, got %d", maxRetries, maxRetries, tool.calls)
		}
		want := fmt.Sprintf("Step 1 failed after %d attempts: service unavailable", maxRetries)
		if msg := goalrunner.ErrorMessage(err); msg != want {
			t.Errorf("expected message %q, got %q", want, msg)
		}
		executed := ec.Steps()
		if len(executed) != 1 || executed[0].Success || executed[0].Error != "service unavailable" {
			t.Errorf("expected one failed record, got %+v", executed)
		}
		for _, in := range tool.inputs {
			if in["value"] != 1 {
				t.Errorf("retries must reuse the same input, got %v", in)
			}
		}
	}
}

func TestExecute_RaisedErrorsAndPanicsCountAsAttempts(t *testing.T) {
	tool := &mockTool{name: "echo", execFunc: func(call int, input map[string]any) (goalrunner.ToolOutput, error) {
		switch call {
		case 1:
			return goalrunner.ToolOutput{}, errors.New("connection reset")
		case 2:
			panic("nil map")
		}
		return goalrunner.ToolOutput{Success: true, Result: "ok"}, nil
	}}
	e := newTestExecutor(t, tool)
	ec := newContext()

	result, err := e.Execute(context.Background(), []goalrunner.Step{{StepNumber: 1, ToolName: "echo", InputData: map[string]any{"value": 1}}}, ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected ok, got %v", result)
	}
	executed := ec.Steps()
	if len(executed) != 1 || executed[0].Attempts != 3 {
		t.Errorf("expected one record after 3 attempts, got %+v", executed)
	}
	m := e.Metrics()
	if m.StepsSuccessful != 1 || m.ToolAttempts != 3 || m.TotalRetries != 2 {
		t.Errorf("unexpected metrics: %+v", &m)
	}
}

func TestExecute_AllAttemptsRaiseLeavesNoRecord(t *testing.T) {
	tool := &mockTool{name: "echo", execFunc: func(call int, input map[string]any) (goalrunner.ToolOutput, error) {
		return goalrunner.ToolOutput{}, errors.New("timeout")
	}}
	e := newTestExecutor(t, tool)
	ec := newContext()

	_, err := e.Execute(context.Background(), []goalrunner.Step{{StepNumber: 4, ToolName: "echo", InputData: map[string]any{"value": 1}}}, ec)
	if !strings.Contains(goalrunner.ErrorMessage(err), "Step 4 failed after 3 attempts: timeout") {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ec.Steps()) != 0 {
		t.Errorf("expected no records when no call returned a result, got %d", len(ec.Steps()))
	}
}

func TestExecute_ResolvesStepReferences(t *testing.T) {
	tool := &mockTool{name: "echo"}
	e := newTestExecutor(t, tool)
	ec := newContext()

	steps := []goalrunner.Step{
		{StepNumber: 1, ToolName: "echo", InputData: map[string]any{"value": map[string]any{"price": 42.5}}},
		{StepNumber: 2, ToolName: "echo", InputData: map[string]any{"value": "$step_1.value.price", "label": "$missing"}},
		{StepNumber: 3, ToolName: "echo", InputData: map[string]any{"value": "$echo"}},
	}
	if _, err := e.Execute(context.Background(), steps, ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tool.inputs[1]["value"]; got != 42.5 {
		t.Errorf("expected resolved reference 42.5, got %v", got)
	}
	if got := tool.inputs[1]["label"]; got != "$missing" {
		t.Errorf("expected unresolved reference untouched, got %v", got)
	}
	if got, ok := tool.inputs[2]["value"].(map[string]any); !ok || got["value"] != 42.5 {
		t.Errorf("expected tool-name reference to the latest echo output, got %v", tool.inputs[2]["value"])
	}
}

func TestExecute_CancelledContext(t *testing.T) {
	tool := &mockTool{name: "echo"}
	e := newTestExecutor(t, tool)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, []goalrunner.Step{{StepNumber: 1, ToolName: "echo", InputData: map[string]any{"value": 1}}}, newContext())
	if !goalrunner.IsCode(err, goalrunner.ErrCodeCancelled) {
		t.Errorf("expected EXECUTION_CANCELLED, got %v", err)
	}
	if tool.calls != 0 {
		t.Errorf("expected no tool calls, got %d", tool.calls)
	}
}

func TestNaiveResult_ReasoningStep(t *testing.T) {
	ec := newContext()
	ec.AddStep(goalrunner.ExecutedStep{StepNumber: 1, ToolName: goalrunner.ToolReasoning, Success: true, Output: map[string]any{"answer": "4"}})
	ec.SetOutput(1, goalrunner.ToolReasoning, map[string]any{"answer": "4"})

	got, ok := NaiveResult([]goalrunner.Step{{StepNumber: 1, ToolName: "reasoning"}}, ec).(map[string]any)
	if !ok {
		t.Fatal("expected map result")
	}
	if got["content"] != "4" || got["source"] != goalrunner.SourceReasoningOnly || got["note"] != "No external tools used" {
		t.Errorf("unexpected naive result: %v", got)
	}
	if NaiveResult(nil, ec) != nil {
		t.Error("expected nil result for empty plan")
	}
}
