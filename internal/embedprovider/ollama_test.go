package embedprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllama_EmbedReturnsVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("expected /api/embeddings, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	p := NewOllama(server.URL, "nomic-embed-text")
	vec, err := p.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected the server's vector to pass through unchanged, got %v", vec)
	}
}

func TestOllama_SurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not pulled"})
	}))
	defer server.Close()

	p := NewOllama(server.URL, "nomic-embed-text")
	if _, err := p.Embed(context.Background(), "some text"); err == nil {
		t.Error("expected an API-reported error to surface")
	}
}

func TestNewOllama_AppliesDefaults(t *testing.T) {
	p := NewOllama("", "")
	if p.ModelID() != "nomic-embed-text" {
		t.Errorf("expected default model, got %s", p.ModelID())
	}
	if p.Dimensions() != 768 {
		t.Errorf("expected 768 dimensions, got %d", p.Dimensions())
	}
}
