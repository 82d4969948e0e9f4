package tools

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/llm"
	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
)

// DefaultReasoningTemperature is the sampling temperature for answers.
const DefaultReasoningTemperature = 0.3

const reasoningSystemPrompt = "You are an agentic execution system. Provide a concise, accurate" +
	" explanation without implying external actions or live data access."

const reasoningNote = "Reasoning-only step; no external tools used"

// ReasoningInput is the input of the reasoning tool.
type ReasoningInput struct {
	Question string `json:"question" jsonschema:"required" jsonschema_description:"Question to answer"`
	Context  string `json:"context,omitempty" jsonschema_description:"Additional context for answering (optional)"`
}

var reasoningSchema = schema.MustFromStruct(ReasoningInput{})

type reasoningTool struct {
	llm         llm.Client
	temperature float64
	logger      *slog.Logger
}

// NewReasoningTool creates the reasoning tool, which answers from model
// knowledge alone.
func NewReasoningTool(client llm.Client, temperature float64, logger *slog.Logger) *FuncTool {
	if logger == nil {
		logger = slog.Default()
	}
	r := &reasoningTool{llm: client, temperature: temperature, logger: logger}
	return NewFuncTool(goalrunner.ToolReasoning, reasoningSchema, r.execute,
		WithDescription("Reasoning-only answers when no external tools are required"),
		WithCategory("Reasoning"),
	)
}

func (r *reasoningTool) execute(ctx context.Context, input map[string]any) (goalrunner.ToolOutput, error) {
	var in ReasoningInput
	if err := schema.Decode(input, &in); err != nil {
		return reasoningFailure(err), nil
	}

	prompt := "Question: " + in.Question
	if in.Context != "" {
		prompt += "\n\nAdditional Context: " + in.Context
	}
	resp, err := r.llm.Call(ctx, []llm.Message{
		llm.System(reasoningSystemPrompt),
		llm.User(prompt),
	}, llm.WithTemperature(r.temperature))
	if err != nil {
		r.logger.Error("reasoning call failed", "error", err)
		return reasoningFailure(err), nil
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return goalrunner.ToolOutput{Success: false, Error: "Failed to generate answer"}, nil
	}
	r.logger.Debug("question answered", "input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
	return goalrunner.ToolOutput{
		Success: true,
		Result: map[string]any{
			"answer":   answer,
			"question": in.Question,
			"note":     reasoningNote,
		},
	}, nil
}

func reasoningFailure(err error) goalrunner.ToolOutput {
	return goalrunner.ToolOutput{Success: false, Error: "Reasoning failed: " + err.Error()}
}
