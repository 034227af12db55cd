package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/jonathan/skillsense/internal/parsing"
)

// DefaultLocalDimension is the vector size of the local model when none is configured.
const DefaultLocalDimension = 256

// Local is an in-process embedder based on signed feature hashing of word tokens and
// character trigrams. It needs no network and no model files, and is fully deterministic.
type Local struct {
	dim int
}

// NewLocal creates a Local embedder. Non-positive dim uses DefaultLocalDimension.
func NewLocal(dim int) *Local {
	if dim <= 0 {
		dim = DefaultLocalDimension
	}
	return &Local{dim: dim}
}

// Embed returns the L2-normalized hashed feature vector of text.
// Text without word characters yields the zero vector.
func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.vector(text), nil
}

// EmbedBatch embeds each text in order.
func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := l.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimension returns the vector size.
func (l *Local) Dimension() int { return l.dim }

// Model identifies the hashing scheme and dimension.
func (l *Local) Model() string { return fmt.Sprintf("local-hash-v1/%d", l.dim) }

// Close is a no-op.
func (l *Local) Close() error { return nil }

func (l *Local) vector(text string) []float32 {
	v := make([]float32, l.dim)
	for _, tok := range parsing.Tokenize(text) {
		l.add(v, "w:"+tok, 1.0)
		runes := []rune("#" + tok + "#")
		for i := 0; i+3 <= len(runes); i++ {
			l.add(v, "c:"+string(runes[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (l *Local) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(l.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}
