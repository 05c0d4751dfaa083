// Package indexer provides line-based chunking and indexing of wiki pages.
package indexer

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the character budget per chunk.
const DefaultChunkSize = 1000

// Chunker splits text into chunks by greedily accumulating whole lines.
type Chunker struct {
	maxChars int
}

// NewChunker creates a chunker with the given character budget per chunk.
func NewChunker(maxChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultChunkSize
	}
	return &Chunker{maxChars: maxChars}
}

// MaxChars returns the character budget.
func (c *Chunker) MaxChars() int {
	return c.maxChars
}

// Split walks the lines of text and accumulates them into a buffer. When adding a line
// would push the buffer (lines joined by "\n", counted in characters) past the budget,
// the buffer is emitted and a new one starts with that line. A single line longer than
// the budget becomes its own chunk. Joining the result with "\n" gives back text.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	var buf []string
	bufLen := 0
	for _, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line)
		if len(buf) > 0 && bufLen+1+n > c.maxChars {
			chunks = append(chunks, strings.Join(buf, "\n"))
			buf = buf[:0]
			bufLen = 0
		}
		if len(buf) > 0 {
			bufLen++
		}
		buf = append(buf, line)
		bufLen += n
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, "\n"))
	}
	return chunks
}
