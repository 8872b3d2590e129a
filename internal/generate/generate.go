// Package generate defines the content generator boundary: the external
// AI service that drafts course structure and lesson content from the
// conversation history. The session engine records whatever a generator
// returns; it applies no retries and no timeout of its own.
package generate

import (
	"context"
	"fmt"
)

// Turn is one conversation turn handed to the generator.
type Turn struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Request carries the conversation history and prompt for one generation.
type Request struct {
	System  string         `json:"system,omitempty"`
	History []Turn         `json:"history"`
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

// Usage tracks token consumption for one generation.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int64 { return u.InputTokens + u.OutputTokens }

// Result is the outcome of one generation call.
type Result struct {
	Content string  `json:"content"`
	Usage   Usage   `json:"usage"`
	CostUSD float64 `json:"cost_usd"`
}

// Generator is the interface all content providers implement.
type Generator interface {
	// Generate produces content from the conversation history and prompt.
	Generate(ctx context.Context, req Request) (*Result, error)

	// Name returns the provider name (e.g. "anthropic", "mock").
	Name() string
}

// GenerationError wraps a provider failure. The session engine passes it
// through unchanged; it has no opinion on fallback providers.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("content generation via %s failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
