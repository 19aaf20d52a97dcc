package config

import (
	"github.com/vhisper/vhisper-core/internal/llm"
	"github.com/vhisper/vhisper-core/internal/provider"
	"github.com/vhisper/vhisper-core/internal/recording"
	"github.com/vhisper/vhisper-core/internal/transcriber"
)

func (c *Config) ToRecordingConfig() recording.Config {
	return recording.Config{
		SampleRate:        c.Recording.SampleRate,
		Channels:          c.Recording.Channels,
		ChannelBufferSize: c.Recording.ChannelBufferSize,
	}
}

// ToTranscriberSettings flattens the selected provider section into the
// adapter configuration captured at session start.
func (c *Config) ToTranscriberSettings() transcriber.Settings {
	settings := transcriber.Settings{
		Provider:   c.Provider,
		APIKey:     c.APIKey(),
		Model:      c.Model(),
		SampleRate: c.Recording.SampleRate,
		Channels:   c.Recording.Channels,
	}

	switch c.Provider {
	case provider.ProviderOpenAI:
		if c.OpenAI != nil {
			settings.Language = c.OpenAI.Language
		}
	case provider.ProviderFunASR:
		if c.FunASR != nil {
			settings.Endpoint = c.FunASR.Endpoint
		}
	}

	return settings
}

func (c *Config) ToLLMConfig() llm.Config {
	return llm.Config{
		Provider: c.LLM.Provider,
		APIKey:   c.LLM.APIKey,
		Model:    c.LLM.Model,
		Endpoint: c.LLM.Endpoint,
	}
}

// IsLLMEnabled reports whether transcript refinement should run.
func (c *Config) IsLLMEnabled() bool {
	return c.LLM.Enabled && c.LLM.Provider != ""
}
