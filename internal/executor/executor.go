// Package executor runs planned steps in order with bounded retries.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/eventbus"
	"github.com/ZanzyTHEbar/goalrunner/internal/validator"
)

const (
	// DefaultMaxRetries is the number of tool calls allowed per step.
	DefaultMaxRetries = 3
	noErrorDetails    = "Tool returned no error details"
)

// StepExecutor runs steps sequentially against an execution context.
type StepExecutor struct {
	registry   *goalrunner.Registry
	maxRetries int
	retryDelay time.Duration
	bus        eventbus.Bus
	logger     *slog.Logger
	metrics    Metrics
}

// Option represents an option for configuring the StepExecutor.
type Option func(*StepExecutor)

// WithMaxRetries sets the number of tool calls allowed per step.
func WithMaxRetries(retries int) Option {
	return func(e *StepExecutor) {
		if retries > 0 {
			e.maxRetries = retries
		}
	}
}

// WithRetryDelay sets the delay between tool calls of the same step.
func WithRetryDelay(delay time.Duration) Option {
	return func(e *StepExecutor) {
		e.retryDelay = delay
	}
}

// WithEventBus publishes step lifecycle events to bus.
func WithEventBus(bus eventbus.Bus) Option {
	return func(e *StepExecutor) {
		e.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *StepExecutor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates a StepExecutor over registry.
func New(registry *goalrunner.Registry, options ...Option) *StepExecutor {
	e := &StepExecutor{
		registry:   registry,
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Metrics returns a snapshot of execution statistics.
func (e *StepExecutor) Metrics() Metrics {
	return e.metrics.Copy()
}

// Execute implements goalrunner.Executor. It stops at the first fatal
// error and never changes the run status; the caller owns transitions.
// On success it returns the naive result of the last step.
func (e *StepExecutor) Execute(ctx context.Context, steps []goalrunner.Step, ec *goalrunner.ExecutionContext) (any, error) {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, goalrunner.NewCancelledError(goalrunner.StageExecution, err)
		}
		if err := e.executeStep(ctx, step, ec); err != nil {
			return nil, err
		}
	}
	return NaiveResult(steps, ec), nil
}

func (e *StepExecutor) executeStep(ctx context.Context, step goalrunner.Step, ec *goalrunner.ExecutionContext) error {
	tool, ok := e.registry.Get(strings.ToLower(step.ToolName))
	if !ok {
		e.logger.Error("tool not found", "execution_id", ec.ExecutionID, "step_number", step.StepNumber, "tool", step.ToolName)
		return goalrunner.NewToolNotFoundError(goalrunner.StageExecution, step.ToolName)
	}
	toolName := tool.Describe().Name

	input := resolveReferences(step.InputData, ec)
	if err := validator.CheckStructure(tool, input); err != nil {
		e.logger.Error("step input failed structural validation",
			"execution_id", ec.ExecutionID, "step_number", step.StepNumber, "tool", toolName, "error", err)
		return err
	}

	e.emit(ctx, eventbus.EventStepStarted, step, ec, nil)
	start := time.Now()

	var (
		lastErr    string
		lastOutput any
		called     bool
	)
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if attempt > 1 {
			e.emit(ctx, eventbus.EventStepRetry, step, ec, map[string]any{"attempt": attempt, "error": lastErr})
			if err := e.wait(ctx); err != nil {
				return goalrunner.NewCancelledError(goalrunner.StageExecution, err)
			}
		}

		e.logger.Debug("executing step",
			"execution_id", ec.ExecutionID, "step_number", step.StepNumber, "tool", toolName, "attempt", attempt)
		out, err := safeExecute(ctx, tool, input)
		if err != nil {
			lastErr = err.Error()
			e.logger.Warn("tool call raised an error",
				"execution_id", ec.ExecutionID, "step_number", step.StepNumber, "tool", toolName, "attempt", attempt, "error", err)
			continue
		}
		called = true
		lastOutput = out.Result
		if !out.Success {
			lastErr = out.Error
			if lastErr == "" {
				lastErr = noErrorDetails
			}
			e.logger.Warn("tool reported failure",
				"execution_id", ec.ExecutionID, "step_number", step.StepNumber, "tool", toolName, "attempt", attempt, "error", lastErr)
			continue
		}

		ec.AddStep(goalrunner.ExecutedStep{
			StepNumber:  step.StepNumber,
			Description: step.Description,
			ToolName:    toolName,
			InputData:   input,
			Output:      out.Result,
			Success:     true,
			Attempts:    attempt,
			Timestamp:   time.Now(),
		})
		ec.SetOutput(step.StepNumber, toolName, out.Result)
		e.metrics.recordStep(true, attempt, time.Since(start))
		e.emit(ctx, eventbus.EventStepSuccess, step, ec, map[string]any{"attempts": attempt})
		e.logger.Info("step completed",
			"execution_id", ec.ExecutionID, "step_number", step.StepNumber, "tool", toolName, "attempts", attempt, "duration", time.Since(start))
		return nil
	}

	if called {
		ec.AddStep(goalrunner.ExecutedStep{
			StepNumber:  step.StepNumber,
			Description: step.Description,
			ToolName:    toolName,
			InputData:   input,
			Output:      lastOutput,
			Success:     false,
			Error:       lastErr,
			Attempts:    e.maxRetries,
			Timestamp:   time.Now(),
		})
	}
	e.metrics.recordStep(false, e.maxRetries, time.Since(start))
	e.emit(ctx, eventbus.EventStepFailure, step, ec, map[string]any{"attempts": e.maxRetries, "error": lastErr})
	e.logger.Error("step exhausted retries",
		"execution_id", ec.ExecutionID, "step_number", step.StepNumber, "tool", toolName, "attempts", e.maxRetries, "error", lastErr)
	return goalrunner.NewToolExecutionError(step.StepNumber, e.maxRetries, lastErr)
}

// safeExecute converts a panicking tool into an ordinary error.
func safeExecute(ctx context.Context, tool goalrunner.Tool, input map[string]any) (out goalrunner.ToolOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Execute(ctx, input)
}

func (e *StepExecutor) wait(ctx context.Context) error {
	if e.retryDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *StepExecutor) emit(ctx context.Context, eventType eventbus.EventType, step goalrunner.Step, ec *goalrunner.ExecutionContext, extra map[string]any) {
	metadata := map[string]any{"tool": step.ToolName}
	for k, v := range extra {
		metadata[k] = v
	}
	event := eventbus.Event{
		Type:        eventType,
		ExecutionID: ec.ExecutionID,
		StepNumber:  step.StepNumber,
		Source:      "executor",
		Payload:     step,
		Metadata:    metadata,
	}
	if err := eventbus.Emit(ctx, e.bus, event); err != nil {
		e.logger.Debug("failed to publish event", "event_type", eventType, "error", err)
	}
}

// NaiveResult is the result of the last step: a reasoning summary when the
// last step used the reasoning tool, otherwise its stored output.
func NaiveResult(steps []goalrunner.Step, ec *goalrunner.ExecutionContext) any {
	if len(steps) == 0 {
		return nil
	}
	executed := ec.Steps()
	if n := len(executed); n > 0 {
		last := executed[n-1]
		if last.Success && last.ToolName == goalrunner.ToolReasoning {
			content := last.Output
			if obj, ok := last.Output.(map[string]any); ok {
				if answer, ok := obj["answer"]; ok {
					content = answer
				}
			}
			return map[string]any{
				"content": content,
				"source":  goalrunner.SourceReasoningOnly,
				"note":    "No external tools used",
			}
		}
	}
	out, _ := ec.Output(goalrunner.StepKey(steps[len(steps)-1].StepNumber))
	return out
}
