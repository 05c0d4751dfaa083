// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/wikichat/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		page TEXT NOT NULL,
		content TEXT NOT NULL,
		build_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_collection_seq ON chunks(collection, seq);
	CREATE INDEX IF NOT EXISTS idx_chunks_page ON chunks(collection, page);

	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		source_path TEXT,
		pages INTEGER NOT NULL DEFAULT 0,
		chunks INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_builds_collection ON builds(collection, started_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateChunk inserts a single chunk. CreatedAt is set when zero.
func (s *SQLiteStorage) CreateChunk(ctx context.Context, chunk *models.Chunk) error {
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (collection, id, seq, page, content, build_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chunk.Collection, chunk.ID, chunk.Seq, chunk.Page, chunk.Content, chunk.BuildID, chunk.CreatedAt,
	)
	return err
}

// GetChunk returns a chunk by collection and ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, collection, id string) (*models.Chunk, error) {
	var chunk models.Chunk
	var buildID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT collection, id, seq, page, content, build_id, created_at
		 FROM chunks WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&chunk.Collection, &chunk.ID, &chunk.Seq, &chunk.Page, &chunk.Content, &buildID, &chunk.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	chunk.BuildID = buildID.String
	return &chunk, nil
}

// NextSeq returns the next unused sequence number for the collection, starting at 1.
func (s *SQLiteStorage) NextSeq(ctx context.Context, collection string) (int64, error) {
	var max int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM chunks WHERE collection = ?`, collection,
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// DeleteCollection removes every chunk and build of the collection.
func (s *SQLiteStorage) DeleteCollection(ctx context.Context, collection string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, collection); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM builds WHERE collection = ?`, collection); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateBuild records the start of an index build.
func (s *SQLiteStorage) CreateBuild(ctx context.Context, build *models.Build) error {
	if build.StartedAt.IsZero() {
		build.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (id, collection, source_path, pages, chunks, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		build.ID, build.Collection, build.SourcePath, build.Pages, build.Chunks, build.StartedAt,
	)
	return err
}

// FinishBuild stores the final counts and completion time of a build.
func (s *SQLiteStorage) FinishBuild(ctx context.Context, build *models.Build) error {
	if build.FinishedAt.IsZero() {
		build.FinishedAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE builds SET pages = ?, chunks = ?, finished_at = ? WHERE id = ?`,
		build.Pages, build.Chunks, build.FinishedAt, build.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("build %s: %w", build.ID, ErrNotFound)
	}
	return nil
}

// LastBuild returns the most recently started build of the collection.
func (s *SQLiteStorage) LastBuild(ctx context.Context, collection string) (*models.Build, error) {
	var b models.Build
	var source sql.NullString
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, collection, source_path, pages, chunks, started_at, finished_at
		 FROM builds WHERE collection = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, collection,
	).Scan(&b.ID, &b.Collection, &source, &b.Pages, &b.Chunks, &b.StartedAt, &finished)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build for %s: %w", collection, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	b.SourcePath = source.String
	if finished.Valid {
		b.FinishedAt = finished.Time
	}
	return &b, nil
}

// CountChunks returns the number of chunks in the collection.
func (s *SQLiteStorage) CountChunks(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// CountPages returns the number of distinct pages with chunks in the collection.
func (s *SQLiteStorage) CountPages(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT page) FROM chunks WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
