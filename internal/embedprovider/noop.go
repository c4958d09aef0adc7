package embedprovider

import (
	"context"
	"hash/fnv"
	"math"
)

// Noop deterministically hashes text into a small fixed-dimension vector
// instead of calling a real embedding model. It keeps semantic search
// exercisable (index build, cosine similarity, cache behaviour) in tests
// and offline runs, at the cost of not actually being semantic.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) ModelID() string { return "noop" }
func (n *Noop) Dimensions() int { return 32 }

func (n *Noop) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, n.Dimensions())
	h := fnv.New32a()
	for i := 0; i < len(text); i++ {
		h.Write([]byte{text[i]})
		vec[int(h.Sum32())%len(vec)] += 1
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		length := float32(math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] /= length
		}
	}
	return vec, nil
}
