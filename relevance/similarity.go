package relevance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	EnsureReady(ctx context.Context) error
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingSimilarity scores two texts by the cosine of their embeddings.
type EmbeddingSimilarity struct {
	Embedder Embedder
}

func (e EmbeddingSimilarity) EnsureReady(ctx context.Context) error {
	if e.Embedder == nil {
		return errors.New("no embedder configured")
	}
	return e.Embedder.EnsureReady(ctx)
}

// Similarity returns the cosine similarity clamped to [0,1] and rounded to
// two decimals. Either text being blank scores 0 without a call.
func (e EmbeddingSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0, nil
	}
	if e.Embedder == nil {
		return 0, errors.New("no embedder configured")
	}
	vecs, err := e.Embedder.Embed(ctx, []string{a, b})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 2 {
		return 0, fmt.Errorf("embedder returned %d vectors for 2 texts", len(vecs))
	}
	return Clamp01(Cosine(vecs[0], vecs[1])), nil
}

// Cosine of two vectors; 0 when either is empty, zero or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Clamp01 clamps to [0,1] and rounds to two decimals.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(0, math.Min(1, v))
	return math.Round(v*100) / 100
}
