package goalrunner_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/eventbus"
	"github.com/ZanzyTHEbar/goalrunner/internal/executor"
	"github.com/ZanzyTHEbar/goalrunner/internal/llm"
	"github.com/ZanzyTHEbar/goalrunner/internal/planfile"
	"github.com/ZanzyTHEbar/goalrunner/internal/store"
	"github.com/ZanzyTHEbar/goalrunner/internal/tools"
)

// staticLLM answers every call with content.
func staticLLM(content string) llm.Client {
	return llm.ClientFunc(func(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
		return &llm.Response{Content: content}, nil
	})
}

type fakePlanner struct {
	steps []goalrunner.Step
	err   error
	calls int
}

func (f *fakePlanner) Plan(ctx context.Context, goal string, userContext map[string]any) ([]goalrunner.Step, error) {
	f.calls++
	return f.steps, f.err
}

func (f *fakePlanner) ClassifyIntent(goal string, userContext map[string]any) goalrunner.Intent {
	return goalrunner.IntentToolRequired
}

type panickingExecutor struct{}

func (panickingExecutor) Execute(ctx context.Context, steps []goalrunner.Step, ec *goalrunner.ExecutionContext) (any, error) {
	panic("executor bug")
}

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.EventType
}

func (b *recordingBus) Publish(ctx context.Context, e eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e.Type)
	return nil
}

func (b *recordingBus) Subscribe(eventbus.Filter, eventbus.Handler) (string, error) { return "", nil }
func (b *recordingBus) Unsubscribe(string) error                                    { return nil }
func (b *recordingBus) Close() error                                                { return nil }

func (b *recordingBus) count(eventType eventbus.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type harness struct {
	registry *goalrunner.Registry
	store    *store.MemoryStore
	bus      *recordingBus
}

func newHarness(t *testing.T, client llm.Client) *harness {
	t.Helper()
	reg := goalrunner.NewRegistry()
	if err := tools.Setup(reg, tools.Dependencies{LLM: client, Memory: store.NewKeyValue()}); err != nil {
		t.Fatalf("tools setup: %v", err)
	}
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	return &harness{registry: reg, store: s, bus: &recordingBus{}}
}

func (h *harness) runner(t *testing.T, planner goalrunner.Planner, opts ...goalrunner.Option) *goalrunner.Runner {
	t.Helper()
	base := []goalrunner.Option{
		goalrunner.WithPlanner(planner),
		goalrunner.WithExecutor(executor.New(h.registry, executor.WithMaxRetries(1))),
		goalrunner.WithStore(h.store),
		goalrunner.WithEventBus(h.bus),
	}
	r, err := goalrunner.New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func plan(steps ...goalrunner.Step) goalrunner.Planner {
	return planfile.NewStaticPlanner(&planfile.PlanFile{Steps: steps})
}

func TestNew_RequiresComponents(t *testing.T) {
	if _, err := goalrunner.New(goalrunner.WithExecutor(panickingExecutor{})); !goalrunner.IsCode(err, goalrunner.ErrCodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR without planner, got %v", err)
	}
	if _, err := goalrunner.New(goalrunner.WithPlanner(&fakePlanner{})); !goalrunner.IsCode(err, goalrunner.ErrCodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR without executor, got %v", err)
	}
}

func TestRun_EmptyGoal(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.runner(t, &fakePlanner{}).Run(context.Background(), "   ", nil)
	if !goalrunner.IsCode(err, goalrunner.ErrCodeValidation) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestRun_ReasoningGoal(t *testing.T) {
	h := newHarness(t, staticLLM("4"))
	r := h.runner(t, plan(goalrunner.Step{
		StepNumber: 1,
		ToolName:   goalrunner.ToolReasoning,
		InputData:  map[string]any{"question": "What is 2+2?"},
	}))

	ec, err := r.Run(context.Background(), "Calculate 2+2", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ec.Status != goalrunner.RunStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", ec.Status, ec.Error)
	}
	want := goalrunner.FinalResult{Content: "4", Source: goalrunner.SourceReasoningOnly, Confidence: goalrunner.ConfidenceHigh}
	if ec.FinalResult == nil || *ec.FinalResult != want {
		t.Errorf("unexpected final result: %+v", ec.FinalResult)
	}
	if ec.Summary == nil || ec.Summary.ReasoningSteps != 1 || ec.CompletedAt == nil {
		t.Errorf("unexpected summary: %+v", ec.Summary)
	}
	if ec.Intent != goalrunner.IntentReasoningOnly {
		t.Errorf("expected reasoning intent, got %s", ec.Intent)
	}

	stored, err := h.store.Get(context.Background(), ec.ExecutionID)
	if err != nil || stored.Status != goalrunner.RunStatusCompleted {
		t.Errorf("expected stored completed record, got %v, %v", stored, err)
	}
	if h.bus.count(eventbus.EventRunStarted) != 1 || h.bus.count(eventbus.EventRunCompleted) != 1 {
		t.Errorf("unexpected events: %v", h.bus.events)
	}
}

func TestRun_HTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newHarness(t, nil)
	r := h.runner(t, plan(goalrunner.Step{
		StepNumber: 1,
		ToolName:   goalrunner.ToolHTTP,
		InputData:  map[string]any{"url": srv.URL},
	}))

	ec, _ := r.Run(context.Background(), "Get the current bitcoin price", nil)
	if ec.Status != goalrunner.RunStatusFailed {
		t.Fatalf("expected failed, got %s", ec.Status)
	}
	if !strings.HasPrefix(ec.FinalResult.Content, "Unable to retrieve live data: ") {
		t.Errorf("unexpected content: %q", ec.FinalResult.Content)
	}
	if ec.FinalResult.Source != goalrunner.SourceToolFailure || ec.FinalResult.Confidence != goalrunner.ConfidenceLow {
		t.Errorf("unexpected tags: %+v", ec.FinalResult)
	}
	if !strings.Contains(ec.Error, "Step 1 failed after 1 attempts") {
		t.Errorf("unexpected error: %q", ec.Error)
	}
	if h.bus.count(eventbus.EventRunFailed) != 1 {
		t.Errorf("expected one run_failed event, got %v", h.bus.events)
	}
}

func TestRun_MemoryRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	r := h.runner(t, plan(
		goalrunner.Step{StepNumber: 1, ToolName: goalrunner.ToolMemory, InputData: map[string]any{"action": "store", "key": "color", "value": "blue"}},
		goalrunner.Step{StepNumber: 2, ToolName: goalrunner.ToolMemory, InputData: map[string]any{"action": "retrieve", "key": "color"}},
	))

	ec, _ := r.Run(context.Background(), "Remember my favourite color", nil)
	if ec.Status != goalrunner.RunStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", ec.Status, ec.Error)
	}
	if got := ec.FinalResult.Content; got != `{"key":"color","value":"blue"}` {
		t.Errorf("unexpected content: %q", got)
	}
	if len(ec.Steps()) != 2 {
		t.Errorf("expected 2 executed steps, got %d", len(ec.Steps()))
	}
}

func TestRun_MissingTool(t *testing.T) {
	h := newHarness(t, nil)
	r := h.runner(t, plan(goalrunner.Step{StepNumber: 1, ToolName: "teleport", InputData: map[string]any{}}))

	ec, _ := r.Run(context.Background(), "Teleport me", nil)
	if ec.Status != goalrunner.RunStatusFailed {
		t.Fatalf("expected failed, got %s", ec.Status)
	}
	if !strings.Contains(ec.Error, "teleport") {
		t.Errorf("expected error to name the tool, got %q", ec.Error)
	}
	if ec.FinalResult.Source != goalrunner.SourceToolFailure {
		t.Errorf("unexpected final result: %+v", ec.FinalResult)
	}
}

func TestRun_PlanningFailure(t *testing.T) {
	h := newHarness(t, nil)
	planner := &fakePlanner{err: goalrunner.NewPlanParseError(errors.New("no JSON array"))}

	ec, _ := h.runner(t, planner).Run(context.Background(), "Do something", nil)
	if ec.Status != goalrunner.RunStatusFailed || ec.FinalResult == nil {
		t.Fatalf("expected failed run with a final result, got %s", ec.Status)
	}
	if h.bus.count(eventbus.EventPlanGenerationFailure) != 1 {
		t.Errorf("expected plan_generation_failure event, got %v", h.bus.events)
	}
}

func TestRun_EmptyPlan(t *testing.T) {
	h := newHarness(t, nil)
	ec, _ := h.runner(t, &fakePlanner{}).Run(context.Background(), "Nothing to do", nil)
	if ec.Status != goalrunner.RunStatusCompleted {
		t.Fatalf("expected completed, got %s", ec.Status)
	}
	if ec.FinalResult.Content != "No steps were executed for this goal." {
		t.Errorf("unexpected content: %q", ec.FinalResult.Content)
	}
}

func TestRun_ExecutorPanicIsContained(t *testing.T) {
	h := newHarness(t, nil)
	planner := &fakePlanner{steps: []goalrunner.Step{{StepNumber: 1, ToolName: goalrunner.ToolMemory}}}
	r, err := goalrunner.New(
		goalrunner.WithPlanner(planner),
		goalrunner.WithExecutor(panickingExecutor{}),
		goalrunner.WithStore(h.store),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ec, _ := r.Run(context.Background(), "Crash", nil)
	if ec.Status != goalrunner.RunStatusFailed || !strings.Contains(ec.Error, "executor bug") {
		t.Errorf("expected failed run mentioning the panic, got %s %q", ec.Status, ec.Error)
	}
	if _, finished := ec.Finished(); !finished {
		t.Error("expected the record to be finished")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	h := newHarness(t, nil)
	planner := &fakePlanner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ec, _ := h.runner(t, planner).Run(ctx, "Anything", nil)
	if ec.Status != goalrunner.RunStatusFailed {
		t.Fatalf("expected failed, got %s", ec.Status)
	}
	if planner.calls != 0 {
		t.Errorf("expected planner not to be called, got %d calls", planner.calls)
	}
	if _, err := h.store.Get(context.Background(), ec.ExecutionID); err != nil {
		t.Errorf("expected finalized record to be stored despite cancellation: %v", err)
	}
}

func TestRun_UniqueIDs(t *testing.T) {
	h := newHarness(t, nil)
	r := h.runner(t, &fakePlanner{})
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		ec, _ := r.Run(context.Background(), fmt.Sprintf("goal %d", i), nil)
		if seen[ec.ExecutionID] {
			t.Fatalf("duplicate execution id %s", ec.ExecutionID)
		}
		seen[ec.ExecutionID] = true
	}
	list, _ := h.store.List(context.Background(), 5)
	if len(list) != 5 {
		t.Errorf("expected list limit to apply, got %d", len(list))
	}
}

func TestRun_IDGenerator(t *testing.T) {
	h := newHarness(t, nil)
	n := 0
	next := func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
	r := h.runner(t, &fakePlanner{}, goalrunner.WithIDGenerator(next))

	for _, want := range []string{"run-1", "run-2"} {
		ec, _ := r.Run(context.Background(), "goal", nil)
		if ec.ExecutionID != want {
			t.Errorf("expected id %s, got %s", want, ec.ExecutionID)
		}
	}
	if _, err := h.store.Get(context.Background(), "run-2"); err != nil {
		t.Errorf("expected record run-2 to be stored: %v", err)
	}
}

func TestNewRunResponse(t *testing.T) {
	h := newHarness(t, staticLLM("4"))
	r := h.runner(t, plan(goalrunner.Step{StepNumber: 1, ToolName: goalrunner.ToolReasoning, InputData: map[string]any{"question": "2+2?"}}))
	ec, _ := r.Run(context.Background(), "Calculate 2+2", nil)

	resp := goalrunner.NewRunResponse(ec)
	if resp.ExecutionID != ec.ExecutionID || resp.Status != goalrunner.RunStatusCompleted {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.StepsCompleted) != 1 || resp.StepsCompleted[0].ToolName != goalrunner.ToolReasoning || !resp.StepsCompleted[0].Success {
		t.Errorf("unexpected steps: %+v", resp.StepsCompleted)
	}
	if resp.Timestamp != *ec.CompletedAt {
		t.Errorf("expected completion timestamp, got %v", resp.Timestamp)
	}
}
