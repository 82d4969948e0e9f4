package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIConfig configures an OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // Optional: Groq, proxies, self-hosted gateways
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIClient calls /chat/completions on an OpenAI-compatible API.
type OpenAIClient struct {
	completions chatCompletions
	model       string
	maxTokens   int
}

// NewOpenAI constructs an OpenAI-compatible Client.
func NewOpenAI(cfg OpenAIConfig) (*OpenAIClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key required")
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		return nil, errors.New("openai: model required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	client := openai.NewClient(opts...)

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &OpenAIClient{
		completions: &client.Chat.Completions,
		model:       modelName,
		maxTokens:   maxTokens,
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

// Call implements Client.
func (c *OpenAIClient) Call(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error) {
	o := ResolveOptions(append([]CallOption{WithMaxTokens(c.maxTokens)}, opts...)...)

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		Messages:            convertMessages(messages),
		Temperature:         openai.Float(o.Temperature),
		MaxCompletionTokens: openai.Int(int64(o.MaxTokens)),
	}
	completion, err := c.completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion failed: %w", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return nil, errors.New("openai: response contained no choices")
	}
	return &Response{
		Content: completion.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
