// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// Truncate returns s cut to its first maxLen characters (runes), with "..." appended
// if anything was cut. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

// HashString returns the hex SHA-256 of s.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
