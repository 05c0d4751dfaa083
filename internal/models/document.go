// Package models defines core data structures for pages, chunks, queries, and chat messages.
package models

import (
	"fmt"
	"time"
)

// Page is one scraped wiki page: its identifier (the site path) and extracted article text.
type Page struct {
	Identifier string `json:"identifier"`
	Text       string `json:"text"`
}

// Chunk is a bounded piece of a page's text stored in a collection.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	Seq        int64     `json:"seq" db:"seq"`
	Collection string    `json:"collection" db:"collection"`
	Page       string    `json:"page" db:"page"`
	Content    string    `json:"content" db:"content"`
	BuildID    string    `json:"build_id,omitempty" db:"build_id"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Metadata returns the provenance metadata stored alongside the chunk's vector.
func (c *Chunk) Metadata() map[string]interface{} {
	return map[string]interface{}{"page": c.Page}
}

// ChunkID returns the collection-wide document ID for sequence number seq.
func ChunkID(seq int64) string {
	return fmt.Sprintf("doc_%d", seq)
}

// Build records one indexer run over a page file.
type Build struct {
	ID         string    `json:"id" db:"id"`
	Collection string    `json:"collection" db:"collection"`
	SourcePath string    `json:"source_path" db:"source_path"`
	Pages      int       `json:"pages" db:"pages"`
	Chunks     int       `json:"chunks" db:"chunks"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" db:"finished_at"`
}
