// Package gateway issues chat-completion calls to remote LLM providers. It
// owns the retry policy and the error taxonomy callers dispatch on.
package gateway

import (
	"context"

	"github.com/threadloom/threadloom/types"
)

// Request describes a single chat-completion call.
type Request struct {
	// Model is the full model identifier, e.g. "openai/gpt-4-turbo".
	Model string

	// Messages is the assembled context window, oldest first.
	Messages []types.Entry

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens limits the response length. Zero uses the provider default.
	MaxTokens int

	// Extra holds additional provider parameters passed through verbatim.
	Extra map[string]any
}

// Usage contains token counts reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a completed chat-completion response.
type Result struct {
	Content      string
	Model        string
	Tokens       int
	FinishReason string
	Usage        Usage
}

// Client issues a single chat-completion call. Implementations retry
// transport-level timeouts internally; every other failure class propagates
// immediately as one of the package's error types.
type Client interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}
