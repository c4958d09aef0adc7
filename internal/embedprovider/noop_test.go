package embedprovider

import (
	"context"
	"math"
	"testing"
)

func TestNoop_EmbedIsDeterministic(t *testing.T) {
	n := NewNoop()
	v1, err := n.Embed(context.Background(), "search files for a pattern")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v2, err := n.Embed(context.Background(), "search files for a pattern")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v1) != n.Dimensions() {
		t.Fatalf("expected a %d-dimension vector, got %d", n.Dimensions(), len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected embedding the same text twice to be deterministic, differed at index %d: %v vs %v", i, v1, v2)
		}
	}
}

func TestNoop_EmbedProducesDifferentVectorsForDifferentText(t *testing.T) {
	n := NewNoop()
	v1, _ := n.Embed(context.Background(), "search files")
	v2, _ := n.Embed(context.Background(), "evaluate arithmetic")

	same := true
	for i := range v1 {
		if v1[i] != v2[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different input text to produce different embeddings")
	}
}

func TestNoop_EmbedIsNormalized(t *testing.T) {
	n := NewNoop()
	v, err := n.Embed(context.Background(), "some tool description")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var normSq float64
	for _, x := range v {
		normSq += float64(x) * float64(x)
	}
	// Embed divides each component by the vector's Euclidean length, so
	// the result has unit norm.
	if math.IsNaN(normSq) || math.Abs(normSq-1) > 1e-5 {
		t.Errorf("expected a unit-length embedding, got normSq=%v", normSq)
	}
}

func TestNoop_EmbedEmptyTextReturnsZeroVector(t *testing.T) {
	n := NewNoop()
	v, err := n.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for _, x := range v {
		if x != 0 {
			t.Errorf("expected an all-zero vector for empty input, got %v", v)
			break
		}
	}
}
