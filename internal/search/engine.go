package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/wikichat/internal/embedding"
	"github.com/hyperjump/wikichat/internal/keyword"
	"github.com/hyperjump/wikichat/internal/models"
	"github.com/hyperjump/wikichat/internal/storage"
	"github.com/hyperjump/wikichat/internal/vector"
)

// Hybrid mode widens each side's candidate list before fusing.
const hybridCandidateFactor = 4

// Engine answers nearest-chunk and keyword queries against one collection.
type Engine struct {
	storage        storage.Storage
	embedder       embedding.Embedder
	vectorIndex    vector.VectorIndex
	keywordIndex   keyword.KeywordIndex
	collection     string
	keywordWeight  float64
	semanticWeight float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithKeywordIndex enables keyword and hybrid modes.
func WithKeywordIndex(k keyword.KeywordIndex) Option {
	return func(e *Engine) { e.keywordIndex = k }
}

// WithHybridWeights sets the keyword and semantic weights used by hybrid mode.
func WithHybridWeights(keywordWeight, semanticWeight float64) Option {
	return func(e *Engine) {
		e.keywordWeight = keywordWeight
		e.semanticWeight = semanticWeight
	}
}

// NewEngine creates a search engine. The embedder must be the one the collection was
// indexed with.
func NewEngine(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	collection string,
	opts ...Option,
) *Engine {
	e := &Engine{
		storage:        storage,
		embedder:       embedder,
		vectorIndex:    vectorIndex,
		collection:     collection,
		keywordWeight:  0.5,
		semanticWeight: 0.5,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve embeds question and returns up to k chunks in the vector index's rank
// order. Fewer (or zero) results are not an error.
func (e *Engine) Retrieve(ctx context.Context, question string, k int) ([]*models.SearchResult, error) {
	hits, err := e.semanticHits(ctx, question, k)
	if err != nil {
		return nil, err
	}
	results := make([]*models.SearchResult, 0, len(hits))
	for _, h := range hits {
		r, err := e.hydrate(ctx, h.ID, h.Score, len(results)+1)
		if err != nil {
			return nil, err
		}
		if r != nil {
			results = append(results, r)
		}
	}
	return results, nil
}

// Search runs query in its mode and returns ranked chunks.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var (
		results []*models.SearchResult
		err     error
	)
	switch query.Mode {
	case models.SearchModeKeyword:
		results, err = e.searchKeyword(ctx, query)
	case models.SearchModeHybrid:
		results, err = e.searchHybrid(ctx, query)
	default:
		results, err = e.Retrieve(ctx, query.Query, query.Limit)
	}
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     query.Query,
		Mode:      query.Mode,
	}, nil
}

func (e *Engine) semanticHits(ctx context.Context, text string, k int) ([]*vector.VectorResult, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	hits, err := e.vectorIndex.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return hits, nil
}

func (e *Engine) keywordHits(ctx context.Context, query *models.SearchQuery, limit int) ([]*keyword.KeywordResult, error) {
	if e.keywordIndex == nil {
		return nil, fmt.Errorf("keyword index not configured")
	}
	hits, err := e.keywordIndex.Search(ctx, query.Query, limit, &keyword.SearchOptions{
		PageBoost:    2.0,
		FuzzyEnabled: query.Fuzzy,
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	return hits, nil
}

func (e *Engine) searchKeyword(ctx context.Context, query *models.SearchQuery) ([]*models.SearchResult, error) {
	hits, err := e.keywordHits(ctx, query, query.Limit)
	if err != nil {
		return nil, err
	}
	results := make([]*models.SearchResult, 0, len(hits))
	for _, h := range hits {
		r, err := e.hydrate(ctx, h.ID, h.Score, len(results)+1)
		if err != nil {
			return nil, err
		}
		if r != nil {
			results = append(results, r)
		}
	}
	return results, nil
}

func (e *Engine) searchHybrid(ctx context.Context, query *models.SearchQuery) ([]*models.SearchResult, error) {
	candidates := query.Limit * hybridCandidateFactor

	var (
		keywordResults  []*keyword.KeywordResult
		semanticResults []*vector.VectorResult
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		hits, err := e.keywordHits(ctx, query, candidates)
		if err != nil {
			errChan <- err
			return
		}
		keywordResults = hits
	}()
	go func() {
		defer wg.Done()
		hits, err := e.semanticHits(ctx, query.Query, candidates)
		if err != nil {
			errChan <- err
			return
		}
		semanticResults = hits
	}()
	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := Fuse(NormalizeKeywordScores(keywordResults), SemanticScores(semanticResults),
		e.keywordWeight, e.semanticWeight)
	results := make([]*models.SearchResult, 0, query.Limit)
	for _, f := range fused {
		if len(results) == query.Limit {
			break
		}
		r, err := e.hydrate(ctx, f.ChunkID, f.Score, len(results)+1)
		if err != nil {
			return nil, err
		}
		if r != nil {
			results = append(results, r)
		}
	}
	return results, nil
}

// hydrate loads the chunk behind an index hit. A hit whose chunk is gone from storage
// (index and store out of step after a crash) yields nil.
func (e *Engine) hydrate(ctx context.Context, id string, score float64, rank int) (*models.SearchResult, error) {
	chunk, err := e.storage.GetChunk(ctx, e.collection, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chunk %s: %w", id, err)
	}
	return &models.SearchResult{Chunk: chunk, Score: score, Rank: rank}, nil
}
