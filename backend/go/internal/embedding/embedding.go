package embedding

import (
	"fmt"
	"time"

	"accord/backend/go/internal/config"
)

// Supported provider names. The configured provider decides which backend
// the factory builds; every deployment uses exactly one.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
)

// NewProvider builds the embedding provider selected by cfg.Provider and,
// when the embedding cache is enabled, wraps it in a CachedProvider.
func NewProvider(cfg *config.EmbeddingConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedding config is nil")
	}

	var (
		provider Provider
		err      error
	)
	switch cfg.Provider {
	case ProviderGemini:
		provider, err = NewGoogleModel(cfg.Gemini.Model, cfg.Gemini.APIKey)
	case ProviderOpenAI:
		provider, err = NewOpenAIModel(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	case ProviderOllama:
		provider, err = NewOllamaModel(cfg.Ollama.Model, cfg.Ollama.BaseURL)
	case ProviderLocal:
		provider, err = NewLocalModel(cfg.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedding provider: %w", cfg.Provider, err)
	}

	if cfg.Cache.Enabled {
		ttl, err := time.ParseDuration(cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("parse embedding cache ttl %q: %w", cfg.Cache.TTL, err)
		}
		provider, err = NewCachedProvider(provider, cfg.Cache.Capacity, ttl)
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}
	}
	return provider, nil
}
