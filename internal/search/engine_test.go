package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/wikichat/internal/embedding"
	"github.com/hyperjump/wikichat/internal/indexer"
	"github.com/hyperjump/wikichat/internal/keyword"
	"github.com/hyperjump/wikichat/internal/models"
	"github.com/hyperjump/wikichat/internal/storage"
	"github.com/hyperjump/wikichat/internal/vector"
)

const testCollection = "ror2_wiki"

var testPages = []models.Page{
	{Identifier: "/wiki/Soldier's_Syringe", Text: "Increases attack speed by 15%."},
	{Identifier: "/wiki/Tougher_Times", Text: "Chance to block incoming damage."},
	{Identifier: "/wiki/Bustling_Fungus", Text: "Heal all nearby allies after standing still."},
}

type fixture struct {
	engine  *Engine
	store   *storage.SQLiteStorage
	vectors *vector.MemoryIndex
	emb     *embedding.MockEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	emb := embedding.NewMockEmbedder(16)
	vecIndex, err := vector.NewMemoryIndex(16)
	if err != nil {
		t.Fatal(err)
	}
	kwIndex, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kwIndex.Close() })

	idx := indexer.NewIndexer(store, emb, vecIndex, testCollection, 1000, indexer.WithKeywordIndex(kwIndex))
	if _, err := idx.IndexPages(ctx, "test", testPages); err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(store, emb, vecIndex, testCollection, WithKeywordIndex(kwIndex))
	return &fixture{engine: engine, store: store, vectors: vecIndex, emb: emb}
}

func TestEngine_Retrieve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	results, err := f.engine.Retrieve(ctx, "Chance to block incoming damage.", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Chunk.Page != "/wiki/Tougher_Times" {
		t.Errorf("exact text should rank first, got %s", results[0].Chunk.Page)
	}
	for i, r := range results {
		if r.Rank != i+1 {
			t.Errorf("result %d has rank %d", i, r.Rank)
		}
		if i > 0 && results[i-1].Score < r.Score {
			t.Error("results should keep the index's descending order")
		}
	}
}

func TestEngine_Retrieve_FewerThanK(t *testing.T) {
	f := newFixture(t)
	results, err := f.engine.Retrieve(context.Background(), "anything", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(testPages) {
		t.Errorf("expected %d results, got %d", len(testPages), len(results))
	}
}

func TestEngine_Retrieve_EmptyCollection(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	vecIndex, _ := vector.NewMemoryIndex(8)
	engine := NewEngine(store, embedding.NewMockEmbedder(8), vecIndex, testCollection)

	results, err := engine.Retrieve(context.Background(), "what is the best item?", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestEngine_Retrieve_SkipsMissingChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vec, _ := f.emb.Embed(ctx, "orphan")
	if err := f.vectors.Add(ctx, []string{"doc_99"}, [][]float32{vec}, nil); err != nil {
		t.Fatal(err)
	}
	results, err := f.engine.Retrieve(ctx, "orphan", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result after skipping orphan, got %d", len(results))
	}
	if results[0].Rank != 1 {
		t.Errorf("rank should be renumbered, got %d", results[0].Rank)
	}
}

type failingEmbedder struct{ embedding.MockEmbedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("quota exceeded")
}

func TestEngine_Retrieve_EmbedError(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(f.store, &failingEmbedder{}, f.vectors, testCollection)
	if _, err := engine.Retrieve(context.Background(), "q", 3); err == nil {
		t.Fatal("expected embedding error")
	}
}

func TestEngine_Search_Modes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		query    *models.SearchQuery
		wantPage string
	}{
		{"semantic", &models.SearchQuery{Query: "Increases attack speed by 15%.", Limit: 1}, "/wiki/Soldier's_Syringe"},
		{"keyword", &models.SearchQuery{Query: "block damage", Limit: 1, Mode: models.SearchModeKeyword}, "/wiki/Tougher_Times"},
		{"keyword page boost", &models.SearchQuery{Query: "fungus", Limit: 1, Mode: models.SearchModeKeyword}, "/wiki/Bustling_Fungus"},
		{"keyword fuzzy", &models.SearchQuery{Query: "alies", Limit: 1, Mode: models.SearchModeKeyword, Fuzzy: true}, "/wiki/Bustling_Fungus"},
		{"hybrid", &models.SearchQuery{Query: "Chance to block incoming damage.", Limit: 2, Mode: models.SearchModeHybrid}, "/wiki/Tougher_Times"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.engine.Search(ctx, tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if len(resp.Results) == 0 {
				t.Fatal("expected results")
			}
			if len(resp.Results) > tt.query.Limit {
				t.Errorf("got %d results, limit %d", len(resp.Results), tt.query.Limit)
			}
			if got := resp.Results[0].Chunk.Page; got != tt.wantPage {
				t.Errorf("top page = %s, want %s", got, tt.wantPage)
			}
			if resp.Mode != tt.query.Mode || resp.Total != len(resp.Results) {
				t.Errorf("response mode=%s total=%d", resp.Mode, resp.Total)
			}
		})
	}
}

func TestEngine_Search_Invalid(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Search(context.Background(), &models.SearchQuery{Query: ""}); err == nil {
		t.Error("expected error for empty query")
	}
	if _, err := f.engine.Search(context.Background(), &models.SearchQuery{Query: "x", Mode: "regex"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestEngine_Search_KeywordWithoutIndex(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(f.store, f.emb, f.vectors, testCollection)
	_, err := engine.Search(context.Background(), &models.SearchQuery{Query: "block", Mode: models.SearchModeKeyword})
	if err == nil {
		t.Error("expected error when keyword index is not configured")
	}
}
