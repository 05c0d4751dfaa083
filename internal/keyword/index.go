// Package keyword provides keyword (BM25) search over indexed chunks.
package keyword

import (
	"context"

	"github.com/hyperjump/wikichat/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// PageBoost multiplies the score contribution from matches in the page identifier.
	// Values > 1 make chunks of a page named like the query rank higher. Use 1.0 for no boost.
	PageBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2). Default is 2.
	Fuzziness int
}

// KeywordIndex defines keyword search operations over chunks.
type KeywordIndex interface {
	Index(ctx context.Context, chunk *models.Chunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Reset(ctx context.Context) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit (ID is the chunk ID).
type KeywordResult struct {
	ID    string
	Score float64
}
