// Package tools provides the built-in tools and a function adapter for
// writing new ones.
package tools

import (
	"log/slog"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/llm"
	"github.com/ZanzyTHEbar/goalrunner/internal/store"
)

// Dependencies are the collaborators the built-in tools need.
type Dependencies struct {
	// LLM backs the reasoning tool. Without it the reasoning tool is not
	// registered.
	LLM                  llm.Client
	ReasoningTemperature float64
	Memory               *store.KeyValue
	HTTP                 HTTPConfig
	Functions            *ExpressionFunctions
	Logger               *slog.Logger
}

// Defaults builds the built-in tools: http, memory, reasoning and calculate.
func Defaults(deps Dependencies) []goalrunner.Tool {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpCfg := deps.HTTP
	if httpCfg.Logger == nil {
		httpCfg.Logger = logger.With("tool", goalrunner.ToolHTTP)
	}

	out := []goalrunner.Tool{
		NewHTTPTool(httpCfg),
		NewMemoryTool(deps.Memory, logger.With("tool", goalrunner.ToolMemory)),
	}
	if deps.LLM != nil {
		temperature := deps.ReasoningTemperature
		if temperature <= 0 {
			temperature = DefaultReasoningTemperature
		}
		out = append(out, NewReasoningTool(deps.LLM, temperature, logger.With("tool", goalrunner.ToolReasoning)))
	}
	out = append(out, NewCalculateTool(deps.Functions))
	return out
}

// Setup registers the built-in tools with registry.
func Setup(registry *goalrunner.Registry, deps Dependencies) error {
	for _, tool := range Defaults(deps) {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}
