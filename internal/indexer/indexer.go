package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/wikichat/internal/embedding"
	"github.com/hyperjump/wikichat/internal/keyword"
	"github.com/hyperjump/wikichat/internal/models"
	"github.com/hyperjump/wikichat/internal/pagefile"
	"github.com/hyperjump/wikichat/internal/storage"
	"github.com/hyperjump/wikichat/internal/vector"
)

// Indexer chunks pages and writes each chunk to storage, the vector index and the keyword index.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex // optional
	chunker      *Chunker
	collection   string
	vectorPath   string
	logger       *zap.Logger // optional

	mu sync.Mutex // one build or reset at a time
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithKeywordIndex also indexes every chunk for keyword search.
func WithKeywordIndex(k keyword.KeywordIndex) IndexerOption {
	return func(idx *Indexer) { idx.keywordIndex = k }
}

// WithVectorPath saves the vector index to path after every build and reset.
func WithVectorPath(path string) IndexerOption {
	return func(idx *Indexer) { idx.vectorPath = path }
}

// NewIndexer creates an indexer for collection. The embedder must be the same one the
// search side uses for queries.
func NewIndexer(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	collection string,
	chunkSize int,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:     storage,
		embedder:    embedder,
		vectorIndex: vectorIndex,
		chunker:     NewChunker(chunkSize),
		collection:  collection,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Collection returns the collection name chunks are written to.
func (idx *Indexer) Collection() string {
	return idx.collection
}

// IndexFile reads the page file at path and indexes every page in it.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (*models.Build, error) {
	pages, err := pagefile.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return idx.IndexPages(ctx, path, pages)
}

// IndexPages chunks each page and indexes chunks in page order, then chunk order. Chunk
// IDs continue from the highest sequence already in the collection, so they strictly
// increase within and across runs. The first failure aborts the build; chunks written
// before it stay in place. Running twice without Reset indexes the same text twice.
func (idx *Indexer) IndexPages(ctx context.Context, source string, pages []models.Page) (*models.Build, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.build(ctx, source, pages)
}

// Rebuild indexes the page file at path, clearing the collection first when reset is
// set. No other build or reset can run in between.
func (idx *Indexer) Rebuild(ctx context.Context, path string, reset bool) (*models.Build, error) {
	pages, err := pagefile.ReadFile(path)
	if err != nil {
		return nil, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if reset {
		if err := idx.reset(ctx); err != nil {
			return nil, err
		}
	}
	return idx.build(ctx, path, pages)
}

func (idx *Indexer) build(ctx context.Context, source string, pages []models.Page) (*models.Build, error) {
	build := &models.Build{
		ID:         uuid.New().String(),
		Collection: idx.collection,
		SourcePath: source,
		StartedAt:  time.Now(),
	}
	if err := idx.storage.CreateBuild(ctx, build); err != nil {
		return nil, fmt.Errorf("failed to record build: %w", err)
	}
	seq, err := idx.storage.NextSeq(ctx, idx.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to read next chunk sequence: %w", err)
	}
	if idx.logger != nil {
		idx.logger.Info("index build started",
			zap.String("build_id", build.ID),
			zap.String("collection", idx.collection),
			zap.String("source", source),
			zap.Int("pages", len(pages)))
	}

	buildErr := idx.indexPages(ctx, build, pages, seq)
	if saveErr := idx.saveVectors(); saveErr != nil && buildErr == nil {
		buildErr = saveErr
	}
	if buildErr != nil {
		if idx.logger != nil {
			idx.logger.Error("index build aborted",
				zap.String("build_id", build.ID),
				zap.Int("chunks", build.Chunks),
				zap.Error(buildErr))
		}
		return build, buildErr
	}

	if err := idx.storage.FinishBuild(ctx, build); err != nil {
		return build, fmt.Errorf("failed to finish build: %w", err)
	}
	if idx.logger != nil {
		idx.logger.Info("index build finished",
			zap.String("build_id", build.ID),
			zap.Int("pages", build.Pages),
			zap.Int("chunks", build.Chunks),
			zap.Duration("took", build.FinishedAt.Sub(build.StartedAt)))
	}
	return build, nil
}

func (idx *Indexer) indexPages(ctx context.Context, build *models.Build, pages []models.Page, seq int64) error {
	for _, page := range pages {
		text := Preprocess(page.Text)
		if isBlank(text) {
			if idx.logger != nil {
				idx.logger.Debug("indexer skipping empty page", zap.String("page", page.Identifier))
			}
			continue
		}
		indexed := 0
		for _, content := range idx.chunker.Split(text) {
			if isBlank(content) {
				continue
			}
			chunk := &models.Chunk{
				ID:         models.ChunkID(seq),
				Seq:        seq,
				Collection: idx.collection,
				Page:       page.Identifier,
				Content:    content,
				BuildID:    build.ID,
			}
			if err := idx.indexChunk(ctx, chunk); err != nil {
				return fmt.Errorf("page %s chunk %s: %w", page.Identifier, chunk.ID, err)
			}
			seq++
			indexed++
			build.Chunks++
		}
		if indexed > 0 {
			build.Pages++
		}
		if idx.logger != nil {
			idx.logger.Debug("indexer page indexed", zap.String("page", page.Identifier), zap.Int("chunks", indexed))
		}
	}
	return nil
}

func (idx *Indexer) indexChunk(ctx context.Context, chunk *models.Chunk) error {
	emb, err := idx.embedder.Embed(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}
	chunk.Embedding = emb
	if err := idx.storage.CreateChunk(ctx, chunk); err != nil {
		return fmt.Errorf("failed to store chunk: %w", err)
	}
	payload := chunk.Metadata()
	payload["text"] = chunk.Content
	if err := idx.vectorIndex.Add(ctx, []string{chunk.ID}, [][]float32{emb}, []map[string]interface{}{payload}); err != nil {
		return fmt.Errorf("failed to index vector: %w", err)
	}
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.Index(ctx, chunk); err != nil {
			return fmt.Errorf("failed to index keywords: %w", err)
		}
	}
	return nil
}

// Reset clears the collection from storage, the vector index and the keyword index.
func (idx *Indexer) Reset(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.reset(ctx)
}

func (idx *Indexer) reset(ctx context.Context) error {
	if err := idx.storage.DeleteCollection(ctx, idx.collection); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := idx.vectorIndex.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset vector index: %w", err)
	}
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset keyword index: %w", err)
		}
	}
	if err := idx.saveVectors(); err != nil {
		return err
	}
	if idx.logger != nil {
		idx.logger.Info("collection reset", zap.String("collection", idx.collection))
	}
	return nil
}

func (idx *Indexer) saveVectors() error {
	if idx.vectorPath == "" {
		return nil
	}
	if err := idx.vectorIndex.Save(idx.vectorPath); err != nil {
		return fmt.Errorf("failed to save vector index: %w", err)
	}
	return nil
}

// Status reports the collection's size and its most recent build.
func (idx *Indexer) Status(ctx context.Context) (*models.Status, error) {
	chunks, err := idx.storage.CountChunks(ctx, idx.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	pages, err := idx.storage.CountPages(ctx, idx.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	vectors, err := idx.vectorIndex.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count vectors: %w", err)
	}
	status := &models.Status{
		Collection: idx.collection,
		Chunks:     chunks,
		Pages:      pages,
		Vectors:    vectors,
	}
	last, err := idx.storage.LastBuild(ctx, idx.collection)
	switch {
	case err == nil:
		status.LastBuild = last
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to load last build: %w", err)
	}
	return status, nil
}
