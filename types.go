package goalrunner

import (
	"strconv"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is still planning or executing.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates every planned step succeeded.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the run stopped on a fatal error.
	RunStatusFailed RunStatus = "failed"
)

// Intent is the coarse classification of a goal.
type Intent string

const (
	IntentReasoningOnly Intent = "reasoning_only"
	IntentToolRequired  Intent = "tool_required"
	IntentMixed         Intent = "mixed"
)

// Final result sources and confidence levels.
const (
	SourceReasoningOnly = "reasoning-only"
	SourceHTTP          = "http"
	SourceMixed         = "mixed"
	SourceToolFailure   = "tool-failure"

	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Tool names with special handling during planning and finalization.
const (
	ToolHTTP      = "http"
	ToolMemory    = "memory"
	ToolReasoning = "reasoning"
	ToolCalculate = "calculate"
)

// Step is one planned unit of work.
type Step struct {
	StepNumber  int            `json:"step_number" yaml:"step_number"`
	Description string         `json:"description" yaml:"description"`
	ToolName    string         `json:"tool_name" yaml:"tool"`
	InputData   map[string]any `json:"input_data" yaml:"input"`
	Reasoning   string         `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// ExecutedStep records the outcome of running a Step.
type ExecutedStep struct {
	StepNumber  int            `json:"step_number"`
	Description string         `json:"description"`
	ToolName    string         `json:"tool_name"`
	InputData   map[string]any `json:"input_data"`
	Output      any            `json:"output"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	Attempts    int            `json:"attempts"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ToolDescriptor is what a tool advertises to planning and validation.
type ToolDescriptor struct {
	Name           string
	Description    string
	RequiredFields []string
	InputSchema    *schema.Schema
}

// ToolOutput is the uniform result of a tool call.
type ToolOutput struct {
	Success bool   `json:"success"`
	Result  any    `json:"result"`
	Error   string `json:"error,omitempty"`
}

// ExecutionSummary is derived once a run finishes.
type ExecutionSummary struct {
	ToolsUsed      []string `json:"tools_used"`
	FailedSteps    int      `json:"failed_steps"`
	ReasoningSteps int      `json:"reasoning_steps"`
	DurationMS     int64    `json:"duration_ms"`
}

// FinalResult is the user-facing outcome of a run.
type FinalResult struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Confidence string `json:"confidence"`
}

// ExecutionContext is the record of one run. The Executor appends steps and
// outputs; the Runner owns every status transition.
type ExecutionContext struct {
	ExecutionID         string
	Goal                string
	UserContext         map[string]any
	Intent              Intent
	Status              RunStatus
	ExecutedSteps       []ExecutedStep
	IntermediateOutputs map[string]any
	FinalResult         *FinalResult
	Summary             *ExecutionSummary
	Error               string
	CreatedAt           time.Time
	CompletedAt         *time.Time

	mu sync.RWMutex
}

// NewExecutionContext creates a running record for goal.
func NewExecutionContext(id, goal string, userContext map[string]any) *ExecutionContext {
	if userContext == nil {
		userContext = map[string]any{}
	}
	return &ExecutionContext{
		ExecutionID:         id,
		Goal:                goal,
		UserContext:         userContext,
		Status:              RunStatusRunning,
		IntermediateOutputs: make(map[string]any),
		CreatedAt:           time.Now(),
	}
}

// SetIntent records the classified intent.
func (ec *ExecutionContext) SetIntent(intent Intent) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.Intent = intent
}

// AddStep appends an executed-step record.
func (ec *ExecutionContext) AddStep(step ExecutedStep) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.ExecutedSteps = append(ec.ExecutedSteps, step)
}

// SetOutput stores a step output under the tool name and under step_<n>.
func (ec *ExecutionContext) SetOutput(stepNumber int, toolName string, output any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.IntermediateOutputs[toolName] = output
	ec.IntermediateOutputs[StepKey(stepNumber)] = output
}

// Output returns a stored intermediate output.
func (ec *ExecutionContext) Output(key string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.IntermediateOutputs[key]
	return v, ok
}

// Steps returns a copy of the executed-step records.
func (ec *ExecutionContext) Steps() []ExecutedStep {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return append([]ExecutedStep(nil), ec.ExecutedSteps...)
}

// Complete marks the run completed with its final result.
func (ec *ExecutionContext) Complete(result FinalResult, summary ExecutionSummary) {
	ec.finish(RunStatusCompleted, "", result, summary)
}

// Fail marks the run failed with its final result.
func (ec *ExecutionContext) Fail(errMsg string, result FinalResult, summary ExecutionSummary) {
	ec.finish(RunStatusFailed, errMsg, result, summary)
}

func (ec *ExecutionContext) finish(status RunStatus, errMsg string, result FinalResult, summary ExecutionSummary) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	now := time.Now()
	ec.Status = status
	ec.Error = errMsg
	ec.FinalResult = &result
	ec.Summary = &summary
	ec.CompletedAt = &now
}

// Finished returns the completion time once the run has left running.
func (ec *ExecutionContext) Finished() (time.Time, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	if ec.CompletedAt == nil {
		return time.Time{}, false
	}
	return *ec.CompletedAt, true
}

// Clone returns a copy of the record taken under the read lock. Step and
// output values are shared, the containers are not.
func (ec *ExecutionContext) Clone() *ExecutionContext {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := &ExecutionContext{
		ExecutionID:         ec.ExecutionID,
		Goal:                ec.Goal,
		UserContext:         ec.UserContext,
		Intent:              ec.Intent,
		Status:              ec.Status,
		ExecutedSteps:       append([]ExecutedStep(nil), ec.ExecutedSteps...),
		IntermediateOutputs: make(map[string]any, len(ec.IntermediateOutputs)),
		Error:               ec.Error,
		CreatedAt:           ec.CreatedAt,
	}
	for k, v := range ec.IntermediateOutputs {
		out.IntermediateOutputs[k] = v
	}
	if ec.FinalResult != nil {
		result := *ec.FinalResult
		out.FinalResult = &result
	}
	if ec.Summary != nil {
		summary := *ec.Summary
		summary.ToolsUsed = append([]string(nil), ec.Summary.ToolsUsed...)
		out.Summary = &summary
	}
	if ec.CompletedAt != nil {
		completed := *ec.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

// StepKey is the intermediate-output key for a step number.
func StepKey(stepNumber int) string {
	return "step_" + strconv.Itoa(stepNumber)
}
