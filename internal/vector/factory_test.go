package vector

import (
	"context"
	"testing"
)

func TestNewVectorIndex_Memory(t *testing.T) {
	idx, err := NewVectorIndex("memory", 3, QdrantConfig{})
	if err != nil {
		t.Fatalf("NewVectorIndex(memory): %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Errorf("Count=%d, want 1", n)
	}
}

func TestNewVectorIndex_Empty(t *testing.T) {
	idx, err := NewVectorIndex("", 3, QdrantConfig{})
	if err != nil {
		t.Fatalf("NewVectorIndex(''): %v", err)
	}
	defer idx.Close()
	if _, ok := idx.(*MemoryIndex); !ok {
		t.Errorf("empty type should give MemoryIndex, got %T", idx)
	}
}

func TestNewVectorIndex_Qdrant(t *testing.T) {
	idx, err := NewVectorIndex("qdrant", 3, QdrantConfig{URL: "http://localhost:6333", Collection: "ror2_wiki"})
	if err != nil {
		t.Fatalf("NewVectorIndex(qdrant): %v", err)
	}
	if _, ok := idx.(*QdrantIndex); !ok {
		t.Errorf("got %T", idx)
	}
	if _, err := NewVectorIndex("qdrant", 3, QdrantConfig{}); err == nil {
		t.Error("expected error without url/collection")
	}
}

func TestNewVectorIndex_Unknown(t *testing.T) {
	if _, err := NewVectorIndex("faiss", 3, QdrantConfig{}); err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestNewVectorIndex_InvalidDimension(t *testing.T) {
	if _, err := NewVectorIndex("memory", 0, QdrantConfig{}); err == nil {
		t.Error("expected error for zero dimension")
	}
}
