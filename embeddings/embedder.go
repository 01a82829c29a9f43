// Package embeddings defines the embedding contract and the vector math the
// retrieval core relies on: unit-normalized vectors so that cosine similarity
// reduces to a dot product.
package embeddings

import (
	"context"
	"math"
)

// Embedder is a minimal interface for computing vector embeddings
// for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Normalize scales v to unit L2 norm in place. A zero vector stays zero.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// Cosine returns the cosine similarity of a and b, defined as 0 when either
// norm is zero or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
