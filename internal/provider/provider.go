package provider

// Provider describes the capability surface of a transcription backend.
type Provider interface {
	Name() string
	RequiresAPIKey() bool
	RequiresEndpoint() bool
	SupportsStreaming() bool
	DefaultModel() string
}

var registry = make(map[string]Provider)

func init() {
	Register(&QwenProvider{})
	Register(&DashScopeProvider{})
	Register(&OpenAIProvider{})
	Register(&FunASRProvider{})
}

// Register adds a provider to the registry
func Register(p Provider) {
	registry[p.Name()] = p
}

// Get returns a provider by name, or nil if not found
func Get(name string) Provider {
	return registry[name]
}

// List returns all registered provider names
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// ListStreaming returns providers that support incremental recognition
func ListStreaming() []string {
	var names []string
	for name, p := range registry {
		if p.SupportsStreaming() {
			names = append(names, name)
		}
	}
	return names
}
