// Package search retrieves chunks from the collection by meaning, by keyword, or both.
package search

import (
	"sort"

	"github.com/hyperjump/wikichat/internal/keyword"
	"github.com/hyperjump/wikichat/internal/vector"
)

// FusedResult holds a chunk ID and its combined keyword/semantic scores.
type FusedResult struct {
	ChunkID       string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores scales BM25 scores into [0,1] by the best hit.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	var maxScore float64
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// SemanticScores maps chunk ID to cosine similarity. Negative similarities count as 0
// so they cannot pull a keyword hit below an unrelated chunk.
func SemanticScores(results []*vector.VectorResult) map[string]float64 {
	scores := make(map[string]float64, len(results))
	for _, r := range results {
		if r.Score < 0 {
			scores[r.ID] = 0
			continue
		}
		scores[r.ID] = r.Score
	}
	return scores
}

// Fuse merges keyword and semantic score maps with weights. Ties are broken by
// chunk ID so the order is stable.
func Fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	byID := make(map[string]*FusedResult, len(keywordScores)+len(semanticScores))
	for id, score := range keywordScores {
		byID[id] = &FusedResult{ChunkID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if r, ok := byID[id]; ok {
			r.SemanticScore = score
			continue
		}
		byID[id] = &FusedResult{ChunkID: id, SemanticScore: score}
	}
	results := make([]*FusedResult, 0, len(byID))
	for _, r := range byID {
		r.Score = keywordWeight*r.KeywordScore + semanticWeight*r.SemanticScore
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results
}
