package provider

// FunASRProvider implements Provider for a self-hosted FunASR server.
// Addressed by endpoint, no credential.
type FunASRProvider struct{}

func (p *FunASRProvider) Name() string {
	return ProviderFunASR
}

func (p *FunASRProvider) RequiresAPIKey() bool {
	return false
}

func (p *FunASRProvider) RequiresEndpoint() bool {
	return true
}

func (p *FunASRProvider) SupportsStreaming() bool {
	return false
}

func (p *FunASRProvider) DefaultModel() string {
	return ""
}
