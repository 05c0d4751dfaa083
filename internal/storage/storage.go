// Package storage defines the persistence interface for chunks and index builds.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/wikichat/internal/models"
)

// ErrNotFound is returned when a chunk or build does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines chunk and build persistence operations. Every call is scoped to a
// collection name.
type Storage interface {
	// Chunk operations
	CreateChunk(ctx context.Context, chunk *models.Chunk) error
	GetChunk(ctx context.Context, collection, id string) (*models.Chunk, error)
	NextSeq(ctx context.Context, collection string) (int64, error)
	DeleteCollection(ctx context.Context, collection string) error

	// Build operations
	CreateBuild(ctx context.Context, build *models.Build) error
	FinishBuild(ctx context.Context, build *models.Build) error
	LastBuild(ctx context.Context, collection string) (*models.Build, error)

	// Stats
	CountChunks(ctx context.Context, collection string) (int64, error)
	CountPages(ctx context.Context, collection string) (int64, error)

	Close() error
}
