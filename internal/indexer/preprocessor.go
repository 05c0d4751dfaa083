package indexer

import "strings"

// Preprocess normalizes line endings so CRLF page files chunk the same as LF ones.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// isBlank reports whether s holds only whitespace.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
