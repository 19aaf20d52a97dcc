package config

import "github.com/vhisper/vhisper-core/internal/provider"

// DefaultConfig returns the configuration used when the host supplies none.
// Credentials are absent; validation happens when a session starts or a
// replacement document is applied, not here.
func DefaultConfig() *Config {
	return &Config{
		Provider: provider.ProviderQwen,
		Recording: RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			ChannelBufferSize: 32,
		},
		LLM: LLMConfig{
			Enabled: false,
		},
	}
}

func (c *Config) applyRecordingDefaults() {
	def := DefaultConfig().Recording
	if c.Recording.SampleRate <= 0 {
		c.Recording.SampleRate = def.SampleRate
	}
	if c.Recording.Channels <= 0 {
		c.Recording.Channels = def.Channels
	}
	if c.Recording.ChannelBufferSize <= 0 {
		c.Recording.ChannelBufferSize = def.ChannelBufferSize
	}
}
