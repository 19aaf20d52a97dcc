package config

// Config selects the active transcription provider and carries its settings.
// Exactly one provider section is required: the one named by Provider.
type Config struct {
	Provider  string           `json:"provider" toml:"provider"`
	Qwen      *QwenConfig      `json:"qwen,omitempty" toml:"qwen"`
	DashScope *DashScopeConfig `json:"dashscope,omitempty" toml:"dashscope"`
	OpenAI    *OpenAIConfig    `json:"openai,omitempty" toml:"openai"`
	FunASR    *FunASRConfig    `json:"funasr,omitempty" toml:"funasr"`
	Recording RecordingConfig  `json:"recording" toml:"recording"`
	LLM       LLMConfig        `json:"llm" toml:"llm"`
}

// QwenConfig holds credentials for Qwen ASR on DashScope
type QwenConfig struct {
	APIKey string `json:"api_key" toml:"api_key"`
	Model  string `json:"model,omitempty" toml:"model"`
}

// DashScopeConfig holds credentials for Paraformer ASR on DashScope
type DashScopeConfig struct {
	APIKey string `json:"api_key" toml:"api_key"`
	Model  string `json:"model,omitempty" toml:"model"`
}

// OpenAIConfig holds credentials for OpenAI Whisper
type OpenAIConfig struct {
	APIKey   string `json:"api_key" toml:"api_key"`
	Model    string `json:"model,omitempty" toml:"model"`
	Language string `json:"language,omitempty" toml:"language"`
}

// FunASRConfig points at a self-hosted FunASR server
type FunASRConfig struct {
	Endpoint string `json:"endpoint" toml:"endpoint"`
}

type RecordingConfig struct {
	SampleRate        int `json:"sample_rate" toml:"sample_rate"`
	Channels          int `json:"channels" toml:"channels"`
	ChannelBufferSize int `json:"channel_buffer_size" toml:"channel_buffer_size"`
}

// LLMConfig configures optional transcript refinement
type LLMConfig struct {
	Enabled  bool   `json:"enabled" toml:"enabled"`
	Provider string `json:"provider,omitempty" toml:"provider"`
	APIKey   string `json:"api_key,omitempty" toml:"api_key"`
	Model    string `json:"model,omitempty" toml:"model"`
	Endpoint string `json:"endpoint,omitempty" toml:"endpoint"`
}

// Clone returns an independent copy; provider sections are value-copied so a
// session snapshot cannot observe a later update.
func (c *Config) Clone() Config {
	out := *c
	if c.Qwen != nil {
		v := *c.Qwen
		out.Qwen = &v
	}
	if c.DashScope != nil {
		v := *c.DashScope
		out.DashScope = &v
	}
	if c.OpenAI != nil {
		v := *c.OpenAI
		out.OpenAI = &v
	}
	if c.FunASR != nil {
		v := *c.FunASR
		out.FunASR = &v
	}
	return out
}
