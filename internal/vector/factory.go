package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search persisted to a file. Good for a
	// single wiki's worth of chunks.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeQdrant stores vectors in a Qdrant collection.
	IndexTypeQdrant IndexType = "qdrant"
)

// NewVectorIndex creates a vector index of the specified type.
// Supported types: "memory" (default), "qdrant". qdrant is only read for the qdrant type.
func NewVectorIndex(indexType string, dimensions int, qdrant QdrantConfig) (VectorIndex, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeQdrant:
		return NewQdrantIndex(qdrant, dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, qdrant)", indexType)
	}
}
