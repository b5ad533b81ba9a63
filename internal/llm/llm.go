// Package llm is the text-generation boundary. Providers are
// interchangeable behind the Generator contract; selection happens once at
// startup.
package llm

import (
	"context"
	"errors"
	"fmt"

	"debatebot/internal/config"
)

// ErrProvider wraps backend failures so callers can treat every provider
// uniformly.
var ErrProvider = errors.New("llm: provider error")

type Generator interface {
	// Generate produces a completion for prompt. The context carries the
	// caller's deadline; implementations must respect it.
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// New selects a provider from configuration.
func New(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGemini(ctx, cfg.GeminiAPIKey)
	case "", "ollama":
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
