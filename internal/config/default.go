package config

// DefaultConfig returns kiln's default configuration: auto-detect
// providers, ask before sensitive tool calls, and a conservative step
// budget.
func DefaultConfig() Config {
	return Config{
		LLM: ProviderConfig{
			Provider: "auto",
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o",
		},
		Embedding: EmbeddingConfig{
			Provider: "auto",
			Model:    "text-embedding-3-small",
		},
		UI: UIConfig{
			ColorEnabled: true,
			ShowSpinner:  true,
		},
		Permissions: DefaultPermissionConfig(),
		Run: RunConfig{
			ApprovalMode: "sensitive",
			MaxSteps:     20,
			TopKTools:    8,
		},
	}
}
