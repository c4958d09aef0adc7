// Package llmprovider implements the external LLM Provider interface: a
// single blocking Complete(prompt) -> text call the Planner's LLM step and
// the summarize_text tool build on. Concrete providers speak the
// OpenAI-compatible chat-completions wire format the teacher's
// internal/llm.Client already speaks, plus an Ollama variant and a Noop
// stub for offline tests.
package llmprovider

import "context"

// Provider completes a single prompt into a response string.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Auto picks a provider based on what's configured, mirroring
// the teacher-adjacent auto-detect pattern (ashita-ai-akashi's
// newEmbeddingProvider): try Ollama if a URL is set, else OpenAI if an
// API key is set, else fall back to Noop so the rest of the system still
// runs (heuristic fallbacks and deterministic tools keep working without
// a live model).
func Auto(cfg Config) Provider {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.Endpoint, cfg.APIKey, cfg.Model)
	case "ollama":
		return NewOllama(cfg.OllamaURL, cfg.Model)
	case "noop":
		return NewNoop()
	default: // "auto"
		if cfg.OllamaURL != "" {
			return NewOllama(cfg.OllamaURL, cfg.Model)
		}
		if cfg.APIKey != "" {
			return NewOpenAI(cfg.Endpoint, cfg.APIKey, cfg.Model)
		}
		return NewNoop()
	}
}

// Config carries the settings needed to select and construct a Provider.
type Config struct {
	Provider  string // "openai", "ollama", "noop", or "auto"
	Endpoint  string
	APIKey    string
	Model     string
	OllamaURL string
}
