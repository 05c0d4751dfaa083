package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/wikichat/internal/config"
	"github.com/hyperjump/wikichat/internal/embedding"
	"github.com/hyperjump/wikichat/internal/indexer"
	"github.com/hyperjump/wikichat/internal/keyword"
	"github.com/hyperjump/wikichat/internal/llm"
	"github.com/hyperjump/wikichat/internal/responder"
	"github.com/hyperjump/wikichat/internal/search"
	"github.com/hyperjump/wikichat/internal/storage"
	"github.com/hyperjump/wikichat/internal/vector"
)

// Components holds initialized services. One embedder is shared by the indexer and the
// search engine so queries and chunks live in the same vector space.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	VectorIndex  vector.VectorIndex
	KeywordIndex keyword.KeywordIndex
	Engine       *search.Engine
	Indexer      *indexer.Indexer
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// initializeComponents opens storage and indices. When needEmbedder is false (status
// only) no embedding client is created, so no API key is required.
func initializeComponents(cfg *config.Config, logger *zap.Logger, debug, needEmbedder bool) (*Components, error) {
	c := &Components{}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	if needEmbedder {
		c.Embedder, err = embedding.New(cfg.Embedding.Provider, embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.APIKey(),
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    seconds(cfg.Embedding.TimeoutSecs),
		}, cfg.Embedding.CacheSize)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	c.VectorIndex, err = vector.NewVectorIndex(cfg.Index.VectorType, cfg.Embedding.Dimensions, vector.QdrantConfig{
		URL:        cfg.Index.Qdrant.URL,
		APIKey:     cfg.Index.Qdrant.APIKey(),
		Collection: cfg.Index.Collection,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	vectorPath := ""
	if cfg.Index.VectorType != string(vector.IndexTypeQdrant) {
		vectorPath = cfg.Storage.VectorIndexPath
	}
	if vectorPath != "" {
		if err := c.VectorIndex.Load(vectorPath); err != nil {
			logger.Warn("vector index load skipped (rebuild with index --reset)",
				zap.String("path", vectorPath), zap.Error(err))
		}
	}
	logger.Debug("vector index initialized", zap.String("type", cfg.Index.VectorType))

	c.KeywordIndex, err = keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	c.Engine = search.NewEngine(store, c.Embedder, c.VectorIndex, cfg.Index.Collection,
		search.WithKeywordIndex(c.KeywordIndex))

	idxOpts := []indexer.IndexerOption{
		indexer.WithKeywordIndex(c.KeywordIndex),
		indexer.WithVectorPath(vectorPath),
	}
	if debug {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	c.Indexer = indexer.NewIndexer(store, c.Embedder, c.VectorIndex, cfg.Index.Collection, cfg.Index.ChunkSize, idxOpts...)
	return c, nil
}

// newResponder builds the question answerer on top of the search engine.
func newResponder(cfg *config.Config, c *Components, logger *zap.Logger) (*responder.Responder, error) {
	completer, err := llm.NewOpenAI(llm.Config{
		APIKey:  cfg.Completion.APIKey(),
		BaseURL: cfg.Completion.BaseURL,
		Model:   cfg.Completion.Model,
		Timeout: seconds(cfg.Completion.TimeoutSecs),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion client: %w", err)
	}
	return responder.New(c.Engine, completer, responder.Config{
		SystemPrompt:   cfg.Completion.SystemPrompt,
		TopK:           cfg.Chat.TopK,
		MaxReplyLength: cfg.Chat.MaxReplyLength,
		Completion: llm.Options{
			MaxTokens:   cfg.Completion.MaxTokens,
			Temperature: cfg.Completion.SamplingTemperature(),
		},
		TopicGuard:    cfg.Chat.TopicGuard,
		TopicKeywords: cfg.Chat.TopicKeywords,
	}, responder.WithLogger(logger)), nil
}
