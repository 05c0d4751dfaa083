package keyword

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	bolt "go.etcd.io/bbolt"

	"github.com/hyperjump/wikichat/internal/models"
)

// ErrIndexInUse is returned when another process holds the on-disk index open.
var ErrIndexInUse = errors.New("keyword index in use by another wikichat process")

// lockTimeout bounds how long opening an existing index waits for its file lock.
const lockTimeout = "1s"

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	path  string
	mu    sync.RWMutex
	index bleve.Index
}

type chunkDoc struct {
	Content string `json:"content"`
	Page    string `json:"page"`
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so item names match as written.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)

	pageFieldMapping := bleve.NewTextFieldMapping()
	pageFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("page", pageFieldMapping)

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path gives an
// in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	index, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &BleveIndex{path: path, index: index}, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return index, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.OpenUsing(path, map[string]interface{}{"bolt_timeout": lockTimeout})
		if errors.Is(openErr, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrIndexInUse, path)
		}
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return index, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return index, nil
}

// Index indexes a chunk's content and page under its ID.
func (b *BleveIndex) Index(ctx context.Context, chunk *models.Chunk) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.Index(chunk.ID, chunkDoc{Content: chunk.Content, Page: pageTerms(chunk.Page)})
}

// pageTerms turns "/wiki/Soldier's_Syringe" into "Soldier's Syringe" so page names tokenize.
func pageTerms(page string) string {
	page = strings.TrimPrefix(page, "/wiki/")
	return strings.NewReplacer("_", " ", "/", " ").Replace(page)
}

// Search runs a match query and returns up to limit results, best first.
// When opts is nil or PageBoost <= 1, a single match over page+content is used.
// Otherwise page and content are queried separately and merged additively.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	pageBoost := 1.0
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		if opts.PageBoost > 0 {
			pageBoost = opts.PageBoost
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}
	if limit <= 0 {
		return nil, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if pageBoost <= 1.0 {
		return b.searchSingle(query, limit, fuzzyEnabled, fuzziness)
	}
	return b.searchWithBoost(query, limit, pageBoost, fuzzyEnabled, fuzziness)
}

func (b *BleveIndex) searchSingle(query string, limit int, fuzzyEnabled bool, fuzziness int) ([]*KeywordResult, error) {
	var q blevequery.Query
	if fuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness, "")
	} else {
		q = bleve.NewMatchQuery(query)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// searchWithBoost scores each chunk as pageScore*pageBoost + contentScore.
func (b *BleveIndex) searchWithBoost(query string, limit int, pageBoost float64, fuzzyEnabled bool, fuzziness int) ([]*KeywordResult, error) {
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	fieldQuery := func(field string) blevequery.Query {
		if fuzzyEnabled {
			return buildFuzzyQuery(query, fuzziness, field)
		}
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		return mq
	}

	scores := make(map[string]float64)
	for _, field := range []string{"page", "content"} {
		req := bleve.NewSearchRequest(fieldQuery(field))
		req.Size = reqSize
		results, err := b.index.Search(req)
		if err != nil {
			return nil, fmt.Errorf("Bleve %s search failed: %w", field, err)
		}
		weight := 1.0
		if field == "page" {
			weight = pageBoost
		}
		for _, hit := range results.Hits {
			scores[hit.ID] += hit.Score * weight
		}
	}

	merged := make([]*KeywordResult, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, &KeywordResult{ID: id, Score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per term.
// If field is empty, searches all fields.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Reset drops every indexed chunk by recreating the index.
func (b *BleveIndex) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("failed to close Bleve index: %w", err)
	}
	if b.path != "" {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("failed to remove Bleve index: %w", err)
		}
	}
	index, err := openOrCreate(b.path)
	if err != nil {
		return err
	}
	b.index = index
	return nil
}

// DocCount returns the total number of chunks in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
