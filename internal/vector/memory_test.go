package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	ids := []string{"a", "b", "c"}
	if err := idx.Add(ctx, ids, vecs, nil); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{2, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("order: got %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Score < 0.999 {
		t.Errorf("cosine of identical direction should be 1, got %f", results[0].Score)
	}
}

func TestMemoryIndex_SearchFewerThanK(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()

	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty index: got %d results", len(results))
	}

	_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}}, nil)
	results, _ = idx.Search(ctx, []float32{1, 0}, 3)
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestMemoryIndex_Mismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}, nil); err == nil {
		t.Error("expected dimension error")
	}
	if err := idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}}, nil); err == nil {
		t.Error("expected length error")
	}
	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}, []map[string]interface{}{}); err == nil {
		t.Error("expected payload length error")
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("expected query dimension error")
	}
}

func TestMemoryIndex_Reset(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}}, nil)
	if err := idx.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	n, err := idx.Count(ctx)
	if err != nil || n != 0 {
		t.Errorf("Count after reset: %d, %v", n, err)
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx", "vectors")
	ctx := context.Background()

	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(ctx, []string{"doc_1", "doc_2"}, [][]float32{{1, 0}, {0, 1}}, nil)
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size %d", loaded.Size())
	}
	results, _ := loaded.Search(ctx, []float32{0, 1}, 1)
	if len(results) != 1 || results[0].ID != "doc_2" {
		t.Errorf("unexpected results %+v", results)
	}

	wrongDims, _ := NewMemoryIndex(3)
	if err := wrongDims.Load(path); err == nil {
		t.Error("expected dimension mismatch error")
	}

	missing, _ := NewMemoryIndex(2)
	if err := missing.Load(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Errorf("missing file should not error: %v", err)
	}
}
