package llm

import (
	"context"
	"fmt"
)

// Adapter interface for LLM transcript refinement
type Adapter interface {
	Process(ctx context.Context, text string) (string, error)
}

// Config holds LLM adapter configuration
type Config struct {
	Provider string
	APIKey   string
	Model    string
	Endpoint string
}

// NewAdapter creates an LLM adapter based on the provider
func NewAdapter(cfg Config) (Adapter, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return NewOpenAIAdapter(cfg), nil
	case "dashscope":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("DashScope API key required")
		}
		return NewDashScopeAdapter(cfg), nil
	case "ollama":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("Ollama endpoint required")
		}
		return NewOllamaAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
