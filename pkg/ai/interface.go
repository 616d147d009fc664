package ai

import (
	"context"
	"time"
)

// TextGenerator sends one prompt to a language model and returns the raw
// reply text. Implement this interface to add a provider.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)

const defaultHTTPTimeout = 90 * time.Second
