package provider

// DashScopeProvider implements Provider for the Paraformer models on DashScope
type DashScopeProvider struct{}

func (p *DashScopeProvider) Name() string {
	return ProviderDashScope
}

func (p *DashScopeProvider) RequiresAPIKey() bool {
	return true
}

func (p *DashScopeProvider) RequiresEndpoint() bool {
	return false
}

func (p *DashScopeProvider) SupportsStreaming() bool {
	return false
}

func (p *DashScopeProvider) DefaultModel() string {
	return "paraformer-realtime-v2"
}
