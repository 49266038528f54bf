// Package strategy implements the advanced retrieval strategies layered on
// hybrid search: HyDE, multi-query fusion, query decomposition, corrective
// retrieval, parent-child expansion, and the agentic orchestrator that picks
// among them.
package strategy

import (
	"context"
	"sort"

	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/retriever"
)

// rrfK is the fusion constant used when merging per-strategy result lists.
const rrfK = 60.0

// Searcher is the hybrid search capability the strategies build on.
type Searcher interface {
	HybridSearch(ctx context.Context, query string, k int, opts *retriever.SearchOptions) ([]models.SearchResult, error)
}

// RRFMerge fuses several rank-ordered result lists with Reciprocal Rank
// Fusion. Chunks appearing in multiple lists accumulate score.
func RRFMerge(lists ...[]models.SearchResult) []models.SearchResult {
	scores := make(map[string]float64)
	docs := make(map[string]models.SearchResult)

	for _, list := range lists {
		for i, res := range list {
			scores[res.ID] += 1.0 / (rrfK + float64(i+1))
			if _, ok := docs[res.ID]; !ok {
				docs[res.ID] = res
			}
		}
	}

	merged := make([]models.SearchResult, 0, len(scores))
	for id, score := range scores {
		res := docs[id]
		res.Score = score
		res.Stage = models.StageFused
		merged = append(merged, res)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
