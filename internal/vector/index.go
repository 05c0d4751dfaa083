// Package vector provides vector index and similarity search.
package vector

import "context"

// VectorIndex defines vector storage and similarity search for one collection.
type VectorIndex interface {
	// Add stores vectors under ids. payloads may be nil; when set it must match ids in length.
	Add(ctx context.Context, ids []string, vectors [][]float32, payloads []map[string]interface{}) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorResult is a single vector search hit (ID is the chunk ID).
type VectorResult struct {
	ID    string
	Score float64 // Cosine similarity
}
