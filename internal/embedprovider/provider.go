// Package embedprovider implements the external Embeddings Provider
// interface used by the Tool Registry's semantic search, grounded on
// ashita-ai-akashi/internal/service/embedding/embedding.go's Provider
// interface and OpenAI/Noop implementations.
package embedprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider embeds text into a fixed-dimension vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelID() string
}

// Config selects and configures a Provider.
type Config struct {
	Provider  string // "openai", "ollama", "noop", or "auto"
	APIKey    string
	Model     string
	OllamaURL string
}

// Auto mirrors ashita-ai-akashi's newEmbeddingProvider auto-detect.
func Auto(cfg Config) Provider {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model)
	case "ollama":
		return NewOllama(cfg.OllamaURL, cfg.Model)
	case "noop":
		return NewNoop()
	default:
		if cfg.OllamaURL != "" {
			return NewOllama(cfg.OllamaURL, cfg.Model)
		}
		if cfg.APIKey != "" {
			return NewOpenAI(cfg.APIKey, cfg.Model)
		}
		return NewNoop()
	}
}

// OpenAI calls https://api.openai.com/v1/embeddings.
type OpenAI struct {
	apiKey     string
	model      string
	dim        int
	httpClient *http.Client
}

func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAI{apiKey: apiKey, model: model, dim: 1536, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (o *OpenAI) ModelID() string  { return o.model }
func (o *OpenAI) Dimensions() int  { return o.dim }

type openAIEmbedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(openAIEmbedRequest{Input: text, Model: o.model})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling openai: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	var parsed openAIEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("openai returned no embeddings")
	}
	return parsed.Data[0].Embedding, nil
}
