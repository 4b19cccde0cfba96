// Package provider defines the completion-provider contract the responder
// calls through, plus the OpenAI-compatible HTTP client implementation.
package provider

import (
	"context"
	"errors"
)

// ErrTimeout marks a provider call that exceeded its request timeout.
// Callers distinguish it from other transport failures via errors.Is.
var ErrTimeout = errors.New("provider: request timed out")

// ErrEmptyCompletion marks a 200 response whose content was missing or blank.
var ErrEmptyCompletion = errors.New("provider: empty completion")

type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Completion struct {
	Text         string
	Model        string
	FinishReason string
	Usage        *Usage
	LatencyMs    int64
}

// Client is the provider-agnostic completion contract.
type Client interface {
	Complete(ctx context.Context, systemPrompt string, turns []Turn) (*Completion, error)
}
