package config

import (
	"fmt"
	"os"

	"github.com/vhisper/vhisper-core/internal/provider"
)

func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("invalid provider: empty")
	}

	p := provider.Get(c.Provider)
	if p == nil {
		return fmt.Errorf("unsupported provider: %s (must be qwen, dashscope, openai, or funasr)", c.Provider)
	}

	switch c.Provider {
	case provider.ProviderQwen:
		if c.Qwen == nil {
			return fmt.Errorf("qwen section required when provider = qwen")
		}
		if c.resolveAPIKey(c.Qwen.APIKey, provider.EnvQwenKey) == "" {
			return fmt.Errorf("qwen API key required: not found in config (qwen.api_key) or environment variable (%s)", provider.EnvQwenKey)
		}
	case provider.ProviderDashScope:
		if c.DashScope == nil {
			return fmt.Errorf("dashscope section required when provider = dashscope")
		}
		if c.resolveAPIKey(c.DashScope.APIKey, provider.EnvDashScopeKey) == "" {
			return fmt.Errorf("dashscope API key required: not found in config (dashscope.api_key) or environment variable (%s)", provider.EnvDashScopeKey)
		}
	case provider.ProviderOpenAI:
		if c.OpenAI == nil {
			return fmt.Errorf("openai section required when provider = openai")
		}
		if c.resolveAPIKey(c.OpenAI.APIKey, provider.EnvOpenAIKey) == "" {
			return fmt.Errorf("openai API key required: not found in config (openai.api_key) or environment variable (%s)", provider.EnvOpenAIKey)
		}
	case provider.ProviderFunASR:
		if c.FunASR == nil || c.FunASR.Endpoint == "" {
			return fmt.Errorf("funasr endpoint required when provider = funasr")
		}
	}

	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid recording.sample_rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels <= 0 {
		return fmt.Errorf("invalid recording.channels: %d", c.Recording.Channels)
	}
	if c.Recording.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid recording.channel_buffer_size: %d", c.Recording.ChannelBufferSize)
	}

	if c.LLM.Enabled {
		validLLMProviders := map[string]bool{"openai": true, "dashscope": true, "ollama": true}
		if !validLLMProviders[c.LLM.Provider] {
			return fmt.Errorf("invalid llm.provider: %s (must be openai, dashscope, or ollama)", c.LLM.Provider)
		}
		if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key required for llm.provider = %s", c.LLM.Provider)
		}
		if c.LLM.Provider == "ollama" && c.LLM.Endpoint == "" {
			return fmt.Errorf("llm.endpoint required for llm.provider = ollama")
		}
	}

	return nil
}

// resolveAPIKey prefers the config value and falls back to the environment.
func (c *Config) resolveAPIKey(configured, envVar string) string {
	if configured != "" {
		return configured
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// APIKey returns the effective credential for the selected provider.
func (c *Config) APIKey() string {
	switch c.Provider {
	case provider.ProviderQwen:
		if c.Qwen != nil {
			return c.resolveAPIKey(c.Qwen.APIKey, provider.EnvQwenKey)
		}
	case provider.ProviderDashScope:
		if c.DashScope != nil {
			return c.resolveAPIKey(c.DashScope.APIKey, provider.EnvDashScopeKey)
		}
	case provider.ProviderOpenAI:
		if c.OpenAI != nil {
			return c.resolveAPIKey(c.OpenAI.APIKey, provider.EnvOpenAIKey)
		}
	}
	return ""
}

// Model returns the configured model for the selected provider, falling back
// to the provider default.
func (c *Config) Model() string {
	var configured string
	switch c.Provider {
	case provider.ProviderQwen:
		if c.Qwen != nil {
			configured = c.Qwen.Model
		}
	case provider.ProviderDashScope:
		if c.DashScope != nil {
			configured = c.DashScope.Model
		}
	case provider.ProviderOpenAI:
		if c.OpenAI != nil {
			configured = c.OpenAI.Model
		}
	}
	if configured != "" {
		return configured
	}
	if p := provider.Get(c.Provider); p != nil {
		return p.DefaultModel()
	}
	return ""
}
