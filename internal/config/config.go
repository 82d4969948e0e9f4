// Package config loads runtime settings from an optional YAML file and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/llm"
	"github.com/ZanzyTHEbar/goalrunner/internal/logging"
)

// Default models per provider.
const (
	DefaultGroqModel   = "mixtral-8x7b-32768"
	DefaultOpenAIModel = "gpt-4-turbo"
	DefaultGeminiModel = llm.DefaultGenkitModel
)

// Config is the full runtime configuration.
type Config struct {
	LLM    LLMConfig    `yaml:"llm"`
	Agent  AgentConfig  `yaml:"agent"`
	Tools  ToolsConfig  `yaml:"tools"`
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// LLMConfig selects the language-model provider.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// AgentConfig tunes planning, repair and execution.
type AgentConfig struct {
	MaxRetries           int           `yaml:"max_retries"`
	RepairAttempts       int           `yaml:"repair_attempts"`
	PlannerTemperature   float64       `yaml:"planner_temperature"`
	RepairTemperature    float64       `yaml:"repair_temperature"`
	ReasoningTemperature float64       `yaml:"reasoning_temperature"`
	RetryDelay           time.Duration `yaml:"retry_delay"`
	// ExecutionTimeout bounds a whole run. Zero means no limit.
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
	UserAgent          string `yaml:"user_agent"`
}

// StoreConfig configures the execution store. Zero retention keeps records
// for the process lifetime.
type StoreConfig struct {
	Retention time.Duration `yaml:"retention"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  llm.ProviderGroq,
			MaxTokens: llm.DefaultMaxTokens,
		},
		Agent: AgentConfig{
			MaxRetries:           3,
			RepairAttempts:       2,
			PlannerTemperature:   0.3,
			RepairTemperature:    0.2,
			ReasoningTemperature: 0.3,
		},
		Tools: ToolsConfig{
			HTTPTimeoutSeconds: 30,
		},
		Server: ServerConfig{Addr: ":8000"},
		Log:    LogConfig{Level: "info", Format: logging.FormatText},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides. It does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, goalrunner.NewConfigurationError("failed to read config file", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, goalrunner.NewConfigurationError("failed to parse config file", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyProviderDefaults()
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup("LLM_PROVIDER"); ok && v != "" {
		c.LLM.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	keyVar, modelVar := providerEnv(c.LLM.Provider)
	if v, ok := lookup(keyVar); ok && v != "" {
		c.LLM.APIKey = v
	}
	if v, ok := lookup(modelVar); ok && v != "" {
		c.LLM.Model = v
	}
	if c.LLM.Provider == llm.ProviderOpenAI {
		if v, ok := lookup("OPENAI_BASE_URL"); ok && v != "" {
			c.LLM.BaseURL = v
		}
	}

	ints := []struct {
		name   string
		target *int
	}{
		{"MAX_RETRIES", &c.Agent.MaxRetries},
		{"REPAIR_ATTEMPTS", &c.Agent.RepairAttempts},
	}
	for _, item := range ints {
		v, ok := lookup(item.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return goalrunner.NewConfigurationError(fmt.Sprintf("%s must be an integer", item.name), err)
		}
		*item.target = n
	}

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		c.Log.Format = v
	}
	if v, ok := lookup("SERVER_ADDR"); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup("STORE_RETENTION"); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return goalrunner.NewConfigurationError("STORE_RETENTION must be a duration", err)
		}
		c.Store.Retention = d
	}
	return nil
}

// providerEnv returns the API key and model variables for provider.
func providerEnv(provider string) (keyVar, modelVar string) {
	switch provider {
	case llm.ProviderOpenAI:
		return "OPENAI_API_KEY", "OPENAI_MODEL"
	case llm.ProviderGoogleAI:
		return "GEMINI_API_KEY", "GEMINI_MODEL"
	default:
		return "GROQ_API_KEY", "GROQ_MODEL"
	}
}

func (c *Config) applyProviderDefaults() {
	if c.LLM.Model != "" {
		return
	}
	switch c.LLM.Provider {
	case llm.ProviderGroq:
		c.LLM.Model = DefaultGroqModel
	case llm.ProviderOpenAI:
		c.LLM.Model = DefaultOpenAIModel
	case llm.ProviderGoogleAI:
		c.LLM.Model = DefaultGeminiModel
	}
}

// Validate reports the first invalid setting as a CONFIGURATION_ERROR.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	return c.ValidateOffline()
}

// HasLLM reports whether an API key is configured.
func (c *Config) HasLLM() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case llm.ProviderGroq, llm.ProviderOpenAI, llm.ProviderGoogleAI:
	default:
		return goalrunner.NewConfigurationError(fmt.Sprintf("unknown LLM provider %q", c.LLM.Provider), nil)
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		keyVar, _ := providerEnv(c.LLM.Provider)
		return goalrunner.NewConfigurationError(
			fmt.Sprintf("no API key configured for provider %q (set %s)", c.LLM.Provider, keyVar), nil)
	}
	if c.LLM.MaxTokens <= 0 {
		return goalrunner.NewConfigurationError("llm.max_tokens must be positive", nil)
	}
	return nil
}

// ValidateOffline checks every setting except the language-model ones. It
// is enough for runs that never call a model.
func (c *Config) ValidateOffline() error {
	if c.Agent.MaxRetries < 1 {
		return goalrunner.NewConfigurationError("agent.max_retries must be at least 1", nil)
	}
	if c.Agent.RepairAttempts < 0 {
		return goalrunner.NewConfigurationError("agent.repair_attempts must not be negative", nil)
	}
	for name, t := range map[string]float64{
		"planner_temperature":   c.Agent.PlannerTemperature,
		"repair_temperature":    c.Agent.RepairTemperature,
		"reasoning_temperature": c.Agent.ReasoningTemperature,
	} {
		if t < 0 || t > 2 {
			return goalrunner.NewConfigurationError(fmt.Sprintf("agent.%s must be between 0 and 2", name), nil)
		}
	}
	if c.Agent.RetryDelay < 0 {
		return goalrunner.NewConfigurationError("agent.retry_delay must not be negative", nil)
	}
	if c.Agent.ExecutionTimeout < 0 {
		return goalrunner.NewConfigurationError("agent.execution_timeout must not be negative", nil)
	}
	if c.Tools.HTTPTimeoutSeconds <= 0 {
		return goalrunner.NewConfigurationError("tools.http_timeout_seconds must be positive", nil)
	}
	if c.Store.Retention < 0 {
		return goalrunner.NewConfigurationError("store.retention must not be negative", nil)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return goalrunner.NewConfigurationError("invalid log.level", err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return goalrunner.NewConfigurationError("invalid log.format", err)
	}
	return nil
}

// ProviderConfig returns the settings for llm.NewProvider.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:  c.LLM.Provider,
		APIKey:    c.LLM.APIKey,
		Model:     c.LLM.Model,
		BaseURL:   c.LLM.BaseURL,
		MaxTokens: c.LLM.MaxTokens,
	}
}

// HTTPTimeout returns the http tool's default timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Tools.HTTPTimeoutSeconds) * time.Second
}
