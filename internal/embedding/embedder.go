// Package embedding provides text embedding via the OpenAI API, a deterministic mock and caching.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// New builds the embedder for provider. The result is wrapped in an LRU cache when
// cacheSize is positive.
func New(provider string, cfg OpenAIConfig, cacheSize int) (Embedder, error) {
	var e Embedder
	switch provider {
	case ProviderOpenAI, "":
		o, err := NewOpenAIEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		e = o
	case ProviderMock:
		e = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, mock)", provider)
	}
	if cacheSize > 0 {
		e = NewCachedEmbedder(e, cacheSize)
	}
	return e, nil
}
