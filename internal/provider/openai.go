package provider

// OpenAIProvider implements Provider for OpenAI Whisper transcription
type OpenAIProvider struct{}

func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

func (p *OpenAIProvider) RequiresAPIKey() bool {
	return true
}

func (p *OpenAIProvider) RequiresEndpoint() bool {
	return false
}

func (p *OpenAIProvider) SupportsStreaming() bool {
	return false
}

func (p *OpenAIProvider) DefaultModel() string {
	return "whisper-1"
}
