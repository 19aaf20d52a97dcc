package provider

// QwenProvider implements Provider for Qwen speech recognition on DashScope.
// The only registered provider with a realtime streaming endpoint.
type QwenProvider struct{}

func (p *QwenProvider) Name() string {
	return ProviderQwen
}

func (p *QwenProvider) RequiresAPIKey() bool {
	return true
}

func (p *QwenProvider) RequiresEndpoint() bool {
	return false
}

func (p *QwenProvider) SupportsStreaming() bool {
	return true
}

func (p *QwenProvider) DefaultModel() string {
	return "qwen3-asr-flash-realtime"
}
