// Package planner turns a goal into a validated, ordered list of steps.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/llm"
)

// DefaultTemperature is the sampling temperature for planning calls.
const DefaultTemperature = 0.3

// Repairer validates a planned step input and repairs it when needed.
type Repairer interface {
	ValidateAndRepair(ctx context.Context, step goalrunner.Step, goal string, userContext map[string]any) (map[string]any, error)
}

// Planner asks the language model for a plan and validates every step.
type Planner struct {
	llm         llm.Client
	registry    *goalrunner.Registry
	repairer    Repairer
	temperature float64
	logger      *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithTemperature sets the planning temperature.
func WithTemperature(t float64) Option {
	return func(p *Planner) {
		p.temperature = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Planner.
func New(client llm.Client, registry *goalrunner.Registry, repairer Repairer, opts ...Option) *Planner {
	p := &Planner{
		llm:         client,
		registry:    registry,
		repairer:    repairer,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ClassifyIntent implements goalrunner.Planner.
func (p *Planner) ClassifyIntent(goal string, userContext map[string]any) goalrunner.Intent {
	return ClassifyIntent(goal, userContext)
}

// Plan implements goalrunner.Planner. Steps naming an unregistered tool are
// returned unvalidated; the Executor rejects them.
func (p *Planner) Plan(ctx context.Context, goal string, userContext map[string]any) ([]goalrunner.Step, error) {
	messages := []llm.Message{
		llm.System(systemPrompt),
		llm.User(buildPlanningPrompt(p.registry.Descriptors(), goal, userContext)),
	}
	p.logger.Debug("planning goal", "goal", goal)

	resp, err := p.llm.Call(ctx, messages, llm.WithTemperature(p.temperature))
	if err != nil {
		return nil, goalrunner.NewLLMError(goalrunner.StagePlanning, err)
	}

	parsed, err := llm.ParseJSON(resp.Content)
	if err != nil {
		return nil, goalrunner.NewPlanParseError(err)
	}
	steps, err := ParseSteps(parsed)
	if err != nil {
		return nil, goalrunner.NewPlanParseError(err)
	}

	for i := range steps {
		step := &steps[i]
		toolName := strings.ToLower(step.ToolName)
		if _, ok := p.registry.Get(toolName); !ok {
			p.logger.Warn("unknown tool in plan", "step_number", step.StepNumber, "tool", step.ToolName)
			continue
		}
		step.InputData = inferInput(toolName, goal, step.InputData)
		repaired, err := p.repairer.ValidateAndRepair(ctx, *step, goal, userContext)
		if err != nil {
			return nil, err
		}
		step.InputData = repaired
	}

	p.logger.Info("generated plan", "goal", goal, "steps", len(steps))
	return steps, nil
}

// ParseSteps maps a decoded plan into steps. It accepts a bare array or an
// object with a "steps" field.
func ParseSteps(parsed any) ([]goalrunner.Step, error) {
	var entries []any
	switch v := parsed.(type) {
	case []any:
		entries = v
	case map[string]any:
		raw, ok := v["steps"]
		if !ok || raw == nil {
			return []goalrunner.Step{}, nil
		}
		arr, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("plan field 'steps' is %T, not an array", raw)
		}
		entries = arr
	default:
		return nil, fmt.Errorf("plan is %T, not an array or object", parsed)
	}

	steps := make([]goalrunner.Step, 0, len(entries))
	for i, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("plan entry %d is %T, not an object", i+1, entry)
		}
		step := goalrunner.Step{
			StepNumber:  i + 1,
			Description: stringField(obj, "description"),
			ToolName:    stringField(obj, "tool_name"),
			Reasoning:   stringField(obj, "reasoning"),
			InputData:   map[string]any{},
		}
		if n, ok := obj["step_number"].(float64); ok {
			step.StepNumber = int(n)
		}
		switch input := obj["input_data"].(type) {
		case nil:
		case map[string]any:
			step.InputData = input
		default:
			return nil, fmt.Errorf("plan entry %d has input_data of type %T", i+1, input)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func stringField(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return ""
}
