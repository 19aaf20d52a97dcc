package transcriber

import (
	"context"
	"fmt"

	"github.com/vhisper/vhisper-core/internal/provider"
)

// BatchAdapter turns a finished capture into text in one shot.
type BatchAdapter interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// Settings is the flat adapter configuration resolved from a config snapshot
// at session start.
type Settings struct {
	Provider   string
	APIKey     string
	Model      string
	Language   string
	Endpoint   string
	SampleRate int
	Channels   int
}

// New creates the batch adapter for the selected provider.
func New(settings Settings) (BatchAdapter, error) {
	switch settings.Provider {
	case provider.ProviderOpenAI:
		if settings.APIKey == "" {
			return nil, fmt.Errorf("openai API key required")
		}
		return NewOpenAIAdapter(settings), nil

	case provider.ProviderQwen, provider.ProviderDashScope:
		if settings.APIKey == "" {
			return nil, fmt.Errorf("%s API key required", settings.Provider)
		}
		return NewDashScopeAdapter(settings), nil

	case provider.ProviderFunASR:
		if settings.Endpoint == "" {
			return nil, fmt.Errorf("funasr endpoint required")
		}
		return NewFunASRAdapter(settings), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", settings.Provider)
	}
}

// NewStreaming creates the streaming adapter for the selected provider, or
// fails when the provider has no incremental recognition capability. There is
// no silent fallback to batch.
func NewStreaming(settings Settings) (StreamingAdapter, error) {
	p := provider.Get(settings.Provider)
	if p == nil {
		return nil, fmt.Errorf("unsupported provider: %s", settings.Provider)
	}
	if !p.SupportsStreaming() {
		return nil, fmt.Errorf("provider %s does not support streaming", settings.Provider)
	}

	switch settings.Provider {
	case provider.ProviderQwen:
		if settings.APIKey == "" {
			return nil, fmt.Errorf("qwen API key required")
		}
		return NewQwenRealtimeAdapter(settings), nil
	default:
		return nil, fmt.Errorf("provider %s does not support streaming", settings.Provider)
	}
}
