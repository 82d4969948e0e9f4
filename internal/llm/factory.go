package llm

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// Supported providers.
const (
	ProviderGroq     = "groq"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// Provider is a constructed client plus the genkit instance backing it, if any.
type Provider struct {
	Client Client
	Genkit *genkit.Genkit
}

// NewProvider creates a Client for the configured provider.
// Supported providers: "groq", "openai", "googleai".
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	switch cfg.Provider {
	case ProviderGroq:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = GroqBaseURL
		}
		c, err := NewOpenAI(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: baseURL, Model: cfg.Model, MaxTokens: cfg.MaxTokens})
		if err != nil {
			return nil, fmt.Errorf("groq provider: %w", err)
		}
		return &Provider{Client: c}, nil
	case ProviderOpenAI:
		c, err := NewOpenAI(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model, MaxTokens: cfg.MaxTokens})
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		return &Provider{Client: c}, nil
	case ProviderGoogleAI:
		model := cfg.Model
		if model == "" {
			model = DefaultGenkitModel
		}
		g, err := genkit.Init(ctx,
			genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.APIKey}),
			genkit.WithDefaultModel(model),
		)
		if err != nil {
			return nil, fmt.Errorf("googleai provider: failed to initialize genkit: %w", err)
		}
		c, err := NewGenkit(g, model, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("googleai provider: %w", err)
		}
		return &Provider{Client: c, Genkit: g}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
