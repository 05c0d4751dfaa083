// Package pagefile reads and writes the intermediate page file that sits between the
// scraper and the indexer.
//
// Each page is written as
//
//	---PAGE: <identifier>---
//	<text>
//	(blank line)
package pagefile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/wikichat/internal/extract"
	"github.com/hyperjump/wikichat/internal/models"
)

// Marker precedes every page identifier.
const Marker = "---PAGE:"

// Write writes pages to w in order.
func Write(w io.Writer, pages []models.Page) error {
	bw := bufio.NewWriter(w)
	for _, p := range pages {
		if _, err := fmt.Fprintf(bw, "%s %s---\n%s\n\n", Marker, p.Identifier, p.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes pages to path, creating parent directories as needed.
func WriteFile(path string, pages []models.Page) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create page file: %w", err)
	}
	if err := Write(f, pages); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write page file: %w", err)
	}
	return f.Close()
}

// Parse splits content on Marker. Segments that are empty after trimming are skipped.
// The first line of a segment is the identifier, with surrounding spaces and a trailing
// "---" removed; the remaining lines are the text.
func Parse(content string) []models.Page {
	var pages []models.Page
	for _, segment := range strings.Split(content, Marker) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		header, text, _ := strings.Cut(segment, "\n")
		id := strings.TrimSpace(header)
		id = strings.TrimSpace(strings.TrimSuffix(id, "---"))
		pages = append(pages, models.Page{Identifier: id, Text: text})
	}
	return pages
}

// ReadFile reads and parses the page file at path.
func ReadFile(path string) ([]models.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page file: %w", err)
	}
	return Parse(extract.Plain(data)), nil
}
