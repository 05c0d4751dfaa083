// Package cli formats results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/wikichat/internal/models"
	"github.com/hyperjump/wikichat/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const snippetLength = 200

// ParseFormat maps a --format flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d %s results in %dms\n\n", response.Total, response.Mode, response.QueryTime)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | %s\n", result.Rank, result.Score, result.Chunk.ID)
	fmt.Fprintf(w, "Page: %s\n", result.Chunk.Page)
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(result.Chunk.Content, snippetLength))
}

// WriteAnswer writes an answer and the chunks it was built from.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintf(w, "\nQ: %s\n\n%s\n", answer.Question, answer.Reply)
	if len(answer.Context) == 0 {
		fmt.Fprintln(w, "\n(no wiki context found)")
		return nil
	}
	fmt.Fprintln(w, "\nSources:")
	for _, r := range answer.Context {
		fmt.Fprintf(w, "  %d. %s (%s, score %.4f)\n", r.Rank, r.Chunk.Page, r.Chunk.ID, r.Score)
	}
	return nil
}

// WriteStatus writes collection statistics.
func WriteStatus(w io.Writer, status *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "Collection:      %s\n", status.Collection)
	fmt.Fprintf(w, "Pages:           %d\n", status.Pages)
	fmt.Fprintf(w, "Chunks:          %d\n", status.Chunks)
	fmt.Fprintf(w, "Vectors:         %d (%s)\n", status.Vectors, status.VectorType)
	fmt.Fprintf(w, "Embedding model: %s\n", status.EmbeddingModel)
	fmt.Fprintf(w, "Chat model:      %s\n", status.ChatModel)
	fmt.Fprintf(w, "Disk usage:      %s\n", FormatBytes(status.DiskUsageBytes))
	if b := status.LastBuild; b != nil {
		state := "unfinished"
		if !b.FinishedAt.IsZero() {
			state = "finished in " + b.FinishedAt.Sub(b.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "Last build:      %s from %s at %s (%d pages, %d chunks, %s)\n",
			b.ID, b.SourcePath, b.StartedAt.Format(time.RFC3339), b.Pages, b.Chunks, state)
	} else {
		fmt.Fprintln(w, "Last build:      none")
	}
	return nil
}

// WriteBuild writes the summary of an index build.
func WriteBuild(w io.Writer, build *models.Build) {
	fmt.Fprintf(w, "Indexed %d chunks from %d pages into %s (build %s)\n",
		build.Chunks, build.Pages, build.Collection, build.ID)
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
