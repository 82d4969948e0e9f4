// Package llm defines the language-model collaborator used by planning,
// repair and the reasoning tool, together with its providers.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultMaxTokens caps completion length when a call sets no limit.
const DefaultMaxTokens = 2000

// DefaultTemperature applies when a call sets no temperature.
const DefaultTemperature = 0.7

// Message is one chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Usage reports token accounting for a call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the text produced by a call.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// CallOptions are the per-call settings a provider honours.
type CallOptions struct {
	Temperature float64
	MaxTokens   int
}

// CallOption configures a single call.
type CallOption func(*CallOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

// ResolveOptions applies opts over the defaults.
func ResolveOptions(opts ...CallOption) CallOptions {
	o := CallOptions{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Client sends a message sequence to a model and returns its text.
type Client interface {
	Call(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error)

// Call implements Client.
func (f ClientFunc) Call(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error) {
	return f(ctx, messages, opts...)
}
