package provider

// Provider name constants used in config documents and the registry
const (
	ProviderQwen      = "qwen"
	ProviderDashScope = "dashscope"
	ProviderOpenAI    = "openai"
	ProviderFunASR    = "funasr"
)

// Environment variable names for API keys
const (
	EnvQwenKey      = "DASHSCOPE_API_KEY"
	EnvDashScopeKey = "DASHSCOPE_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
)

// EnvVarForProvider returns the environment variable name for a provider's API key
func EnvVarForProvider(name string) string {
	switch name {
	case ProviderQwen:
		return EnvQwenKey
	case ProviderDashScope:
		return EnvDashScopeKey
	case ProviderOpenAI:
		return EnvOpenAIKey
	default:
		return ""
	}
}
