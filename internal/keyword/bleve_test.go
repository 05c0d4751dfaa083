package keyword

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/wikichat/internal/models"
)

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()

	ctx := context.Background()
	chunk := &models.Chunk{
		ID:      "doc_1",
		Page:    "/wiki/Huntress",
		Content: "Huntress pairs well with Soldier's Syringe and Lens-Maker's Glasses.",
	}
	if err := idx.Index(ctx, chunk); err != nil {
		t.Fatalf("Index: %v", err)
	}
	_ = idx.Index(ctx, &models.Chunk{ID: "doc_2", Page: "/wiki/Stage", Content: "Distant Roost is a first stage."})

	results, err := idx.Search(ctx, "syringe", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "doc_1" {
		t.Fatalf("expected doc_1 only, got %+v", results)
	}
}

func TestBleveIndex_PageBoost(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	_ = idx.Index(ctx, &models.Chunk{ID: "doc_1", Page: "/wiki/Items", Content: "Engineer turrets inherit items."})
	_ = idx.Index(ctx, &models.Chunk{ID: "doc_2", Page: "/wiki/Engineer", Content: "Places turrets."})

	results, err := idx.Search(ctx, "engineer", 10, &SearchOptions{PageBoost: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "doc_2" {
		t.Errorf("page match should rank first, got %s", results[0].ID)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx, _ := NewBleveIndex("")
	defer idx.Close()
	ctx := context.Background()
	_ = idx.Index(ctx, &models.Chunk{ID: "doc_1", Page: "/wiki/Boss", Content: "Mithrix is the final boss."})

	exact, _ := idx.Search(ctx, "mithrx", 10, nil)
	if len(exact) != 0 {
		t.Errorf("typo should not match without fuzzy, got %d", len(exact))
	}
	fuzzy, err := idx.Search(ctx, "mithrx", 10, &SearchOptions{FuzzyEnabled: true, Fuzziness: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(fuzzy) != 1 {
		t.Errorf("fuzzy search should match, got %d", len(fuzzy))
	}
}

func TestBleveIndex_OpenExistingKeepsChunks(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "bleve")
	ctx := context.Background()

	idx1, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	if err := idx1.Index(ctx, &models.Chunk{ID: "doc_1", Page: "p", Content: "uniqueword"}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx2, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex (open existing): %v", err)
	}
	defer idx2.Close()

	results, err := idx2.Search(ctx, "uniqueword", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("reopened index should keep chunks; got %d results", len(results))
	}
}

func TestBleveIndex_Reset(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "bleve")} {
		idx, err := NewBleveIndex(path)
		if err != nil {
			t.Fatalf("NewBleveIndex(%q): %v", path, err)
		}
		ctx := context.Background()
		_ = idx.Index(ctx, &models.Chunk{ID: "doc_1", Page: "p", Content: "onlyindoc1"})

		if err := idx.Reset(ctx); err != nil {
			t.Fatalf("Reset: %v", err)
		}
		n, err := idx.DocCount()
		if err != nil || n != 0 {
			t.Errorf("DocCount after reset = %d, %v", n, err)
		}
		results, _ := idx.Search(ctx, "onlyindoc1", 10, nil)
		if len(results) != 0 {
			t.Errorf("expected 0 results after reset, got %d", len(results))
		}
		_ = idx.Close()
	}
}

func TestNewBleveIndex_createsDir(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "sub", "bleve")

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	_ = idx.Close()

	if _, err := os.Stat(indexPath); err != nil {
		t.Errorf("index path should exist: %v", err)
	}
}

func TestPageTerms(t *testing.T) {
	if got := pageTerms("/wiki/Soldier's_Syringe"); got != "Soldier's Syringe" {
		t.Errorf("got %q", got)
	}
}

func TestNewBleveIndex_PathAlreadyOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	held, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer held.Close()

	done := make(chan error, 1)
	go func() {
		idx, err := NewBleveIndex(path)
		if err == nil {
			_ = idx.Close()
		}
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrIndexInUse) {
			t.Errorf("expected ErrIndexInUse, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("second open of a held index path did not return")
	}
}
