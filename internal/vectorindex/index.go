// Package vectorindex stores short documents with their embeddings and answers nearest-neighbour queries.
package vectorindex

import (
	"context"
	"errors"
	"math"
)

// ErrDimensionMismatch is returned when an embedding does not fit the index.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Document is one indexed text with free-form metadata.
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Hit is a query result; Score is the cosine similarity, higher is closer.
type Hit struct {
	Document
	Score float32
}

// Index is the vector store collaborator used by the portfolio.
type Index interface {
	// Add embeds and stores docs. Documents whose ID is already present are skipped.
	Add(ctx context.Context, docs []Document) error
	Count(ctx context.Context) (int, error)
	// Query returns at most n documents ordered by descending similarity to text.
	Query(ctx context.Context, text string, n int) ([]Hit, error)
	// Reset removes every document.
	Reset(ctx context.Context) error
	Close() error
}

// Cosine returns the cosine similarity of a and b, 0 when undefined.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return float32(dot / denom)
}
