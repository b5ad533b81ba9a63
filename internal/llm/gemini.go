package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini generates through the Gemini API, falling back across models when
// one is rate limited or unavailable.
type Gemini struct {
	client *genai.Client
	models []string
}

func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		client: client,
		models: []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"},
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, model := range g.models {
		result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			if retriable(err) {
				lastErr = err
				continue
			}
			return "", fmt.Errorf("%w: %v", ErrProvider, err)
		}
		if result != nil && len(result.Candidates) > 0 &&
			result.Candidates[0].Content != nil && len(result.Candidates[0].Content.Parts) > 0 {
			return result.Candidates[0].Content.Parts[0].Text, nil
		}
		lastErr = fmt.Errorf("empty candidates from %s", model)
	}
	return "", fmt.Errorf("%w: all models failed: %v", ErrProvider, lastErr)
}

func retriable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "exhausted") ||
		strings.Contains(msg, "not found")
}
