package models

import "fmt"

// Search modes.
const (
	SearchModeSemantic = "semantic"
	SearchModeKeyword  = "keyword"
	SearchModeHybrid   = "hybrid"
)

// SearchQuery represents a search request against the collection.
type SearchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	Mode  string `json:"mode,omitempty"`          // semantic (default), keyword or hybrid
	Fuzzy bool   `json:"fuzzy_enabled,omitempty"` // keyword and hybrid modes
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if the query is empty or the mode is unknown.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 3
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	switch q.Mode {
	case "":
		q.Mode = SearchModeSemantic
	case SearchModeSemantic, SearchModeKeyword, SearchModeHybrid:
	default:
		return fmt.Errorf("unknown search mode: %s", q.Mode)
	}
	return nil
}
