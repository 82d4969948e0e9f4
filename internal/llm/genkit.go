package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// DefaultGenkitModel is used when no Google AI model is configured.
const DefaultGenkitModel = "googleai/gemini-1.5-flash"

type generateFunc func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)

// GenkitClient routes calls through a genkit instance.
type GenkitClient struct {
	generate  generateFunc
	model     string
	maxTokens int
}

// NewGenkit wraps an initialized genkit instance.
func NewGenkit(g *genkit.Genkit, model string, maxTokens int) (*GenkitClient, error) {
	if g == nil {
		return nil, errors.New("genkit: instance is required")
	}
	if model == "" {
		model = DefaultGenkitModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &GenkitClient{
		generate: func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
			return genkit.Generate(ctx, g, opts...)
		},
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Model returns the configured model name.
func (c *GenkitClient) Model() string { return c.model }

// Call implements Client.
func (c *GenkitClient) Call(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error) {
	o := ResolveOptions(append([]CallOption{WithMaxTokens(c.maxTokens)}, opts...)...)

	msgs := make([]*ai.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			msgs = append(msgs, ai.NewSystemTextMessage(msg.Content))
		case RoleAssistant:
			msgs = append(msgs, ai.NewModelTextMessage(msg.Content))
		default:
			msgs = append(msgs, ai.NewUserTextMessage(msg.Content))
		}
	}

	resp, err := c.generate(ctx,
		ai.WithModelName(c.model),
		ai.WithMessages(msgs...),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     o.Temperature,
			MaxOutputTokens: o.MaxTokens,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("genkit: generate failed: %w", err)
	}
	if resp == nil {
		return nil, errors.New("genkit: empty response")
	}

	out := &Response{Content: resp.Text()}
	if resp.Usage != nil {
		out.Usage = Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}
	}
	return out, nil
}
