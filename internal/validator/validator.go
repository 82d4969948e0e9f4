// Package validator checks planned step inputs against tool schemas and asks
// the language model to repair inputs that fail.
package validator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/llm"
	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
)

const (
	// DefaultMaxAttempts is the number of repair calls allowed per step.
	DefaultMaxAttempts = 2
	// DefaultTemperature is the sampling temperature for repair calls.
	DefaultTemperature = 0.2
)

// Validator validates and repairs step inputs.
type Validator struct {
	registry    *goalrunner.Registry
	llm         llm.Client
	maxAttempts int
	temperature float64
	logger      *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxAttempts sets how many repair calls are made before giving up.
func WithMaxAttempts(n int) Option {
	return func(v *Validator) {
		if n >= 0 {
			v.maxAttempts = n
		}
	}
}

// WithTemperature sets the repair sampling temperature.
func WithTemperature(t float64) Option {
	return func(v *Validator) {
		v.temperature = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a Validator backed by registry and an LLM client for repairs.
func New(registry *goalrunner.Registry, client llm.Client, opts ...Option) *Validator {
	v := &Validator{
		registry:    registry,
		llm:         client,
		maxAttempts: DefaultMaxAttempts,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// MaxAttempts returns the configured repair budget.
func (v *Validator) MaxAttempts() int { return v.maxAttempts }

// CollectErrors returns every missing required field followed by every
// structural schema violation in input.
func CollectErrors(tool goalrunner.Tool, input map[string]any) []string {
	desc := tool.Describe()
	var errs []string
	seen := make(map[string]bool)
	add := func(msg string) {
		if !seen[msg] {
			seen[msg] = true
			errs = append(errs, msg)
		}
	}
	for _, field := range desc.RequiredFields {
		if !schema.HasValue(input[field]) {
			add("Missing required field: '" + field + "'")
		}
	}
	for _, violation := range schema.Violations(tool.Validate(input)) {
		add(violation)
	}
	return errs
}

// CheckStructure runs the tool's structural validation only. It never calls
// the language model.
func CheckStructure(tool goalrunner.Tool, input map[string]any) error {
	if err := tool.Validate(input); err != nil {
		return goalrunner.NewValidationError(goalrunner.StageExecution,
			"input for tool '"+tool.Describe().Name+"' failed structural validation", err)
	}
	return nil
}

// ValidateAndRepair returns a valid input for step, repairing it with the
// language model when needed. At most MaxAttempts repair calls are made.
func (v *Validator) ValidateAndRepair(ctx context.Context, step goalrunner.Step, goal string, userContext map[string]any) (map[string]any, error) {
	tool, ok := v.registry.Get(strings.ToLower(step.ToolName))
	if !ok {
		return nil, goalrunner.NewToolNotFoundError(goalrunner.StageValidation, step.ToolName)
	}

	candidate := copyInput(step.InputData)
	var errs []string
	for attempt := 0; attempt <= v.maxAttempts; attempt++ {
		errs = CollectErrors(tool, candidate)
		if len(errs) == 0 {
			return candidate, nil
		}
		v.logger.Warn("step input failed validation",
			"step_number", step.StepNumber,
			"tool", tool.Describe().Name,
			"attempt", attempt+1,
			"max_attempts", v.maxAttempts+1,
			"errors", errs,
		)
		if attempt == v.maxAttempts {
			break
		}

		repaired, err := v.repair(ctx, tool.Describe(), goal, userContext, candidate, errs)
		if err != nil {
			return nil, err
		}
		if repaired == nil {
			break
		}
		candidate = repaired
	}
	return nil, goalrunner.NewRepairExhaustedError(tool.Describe().Name, errs)
}

// repair asks the model for a corrected input. A nil map with a nil error
// means the response was not a JSON object.
func (v *Validator) repair(ctx context.Context, desc goalrunner.ToolDescriptor, goal string, userContext, input map[string]any, errs []string) (map[string]any, error) {
	messages := []llm.Message{
		llm.System(repairSystemPrompt),
		llm.User(buildRepairPrompt(desc, goal, userContext, input, errs)),
	}
	resp, err := v.llm.Call(ctx, messages, llm.WithTemperature(v.temperature))
	if err != nil {
		return nil, goalrunner.NewLLMError(goalrunner.StageValidation, err)
	}
	parsed, err := llm.ParseJSON(resp.Content)
	if err != nil {
		v.logger.Warn("repair response was not JSON", "tool", desc.Name, "error", err)
		return nil, nil
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		v.logger.Warn("repair response was not a JSON object", "tool", desc.Name)
		return nil, nil
	}
	return obj, nil
}

func copyInput(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, val := range in {
		out[k] = val
	}
	return out
}
