package ai

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	GeminiAPIKey string

	// Ollama settings are read through getters so the settings API can
	// change them without a restart.
	GetOllamaBaseURL func() string
	GetOllamaModel   func() string

	HTTPClient *http.Client
}

// NewGenerator creates a TextGenerator based on the config. With
// ProviderAuto every configured provider is used, in the order OpenAI,
// Gemini, Ollama, behind a FallbackService.
func NewGenerator(cfg Config, log *zap.Logger) (TextGenerator, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.HTTPClient), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiService(cfg.GeminiAPIKey, cfg.HTTPClient), nil

	case ProviderOllama:
		return cfg.ollama(), nil

	case ProviderAuto, "":
		var providers []TextGenerator
		if cfg.OpenAIAPIKey != "" {
			providers = append(providers, NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.HTTPClient))
		}
		if cfg.GeminiAPIKey != "" {
			providers = append(providers, NewGeminiService(cfg.GeminiAPIKey, cfg.HTTPClient))
		}
		if cfg.GetOllamaBaseURL != nil && cfg.GetOllamaBaseURL() != "" {
			providers = append(providers, cfg.ollama())
		}
		switch len(providers) {
		case 0:
			return nil, fmt.Errorf("no AI provider configured")
		case 1:
			return providers[0], nil
		default:
			return NewFallbackService(log, providers...), nil
		}

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func (cfg Config) ollama() *OllamaService {
	getBase, getModel := cfg.GetOllamaBaseURL, cfg.GetOllamaModel
	if getBase == nil {
		getBase = func() string { return "" }
	}
	if getModel == nil {
		getModel = func() string { return "" }
	}
	return NewOllamaServiceWithGetters(getBase, getModel)
}
