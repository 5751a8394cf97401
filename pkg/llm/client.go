// Package llm provides a unified text-completion interface for LLM
// providers. The core consumes the Client interface only; providers are
// interchangeable.
package llm

import (
	"context"
	"errors"
)

// Params tunes a single completion call.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client is the stateless completion contract the extraction pipeline
// depends on.
type Client interface {
	// Complete sends prompt to the provider and returns its reply.
	Complete(ctx context.Context, prompt string, p Params) (string, error)

	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string
}

// ErrNoClient is returned by components that were configured without an LLM
// client but asked to perform LLM work.
var ErrNoClient = errors.New("no LLM client configured")

// Config holds common provider configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
}

// DefaultConfig returns sensible provider defaults.
func DefaultConfig() Config {
	return Config{
		Temperature: 0.1,
		MaxTokens:   4096,
		MaxRetries:  2,
	}
}
