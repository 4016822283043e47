package ai

import (
	"github.com/notectx/notectx/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Enabled bool

	Embedding EmbeddingConfig
	LLM       LLMConfig
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Model      string // e.g. text-embedding-3-small, BAAI/bge-m3
	Dimensions int    // must match the backend's vector column
	APIKey     string
	BaseURL    string // any OpenAI-compatible endpoint
}

// LLMConfig represents the answer model configuration.
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 2048
	Temperature float32 // default: 0.7
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.IsAIEnabled(),
	}
	if !cfg.Enabled {
		return cfg
	}

	cfg.Embedding = EmbeddingConfig{
		Model:      p.AIEmbeddingModel,
		Dimensions: p.AIEmbeddingDimensions,
		APIKey:     p.AIAPIKey,
		BaseURL:    p.AIBaseURL,
	}
	cfg.LLM = LLMConfig{
		Model:       p.AILLMModel,
		APIKey:      p.AIAPIKey,
		BaseURL:     p.AIBaseURL,
		MaxTokens:   2048,
		Temperature: 0.7,
	}
	return cfg
}
