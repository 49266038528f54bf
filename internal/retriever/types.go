// Package retriever composes dense vector search, BM25, query expansion,
// legal-reference filtering, knowledge-graph and authority boosting, and
// cross-encoder reranking into one hybrid search operation.
package retriever

import (
	"context"

	"github.com/hukumqa/hukumqa/internal/models"
)

// VectorIndex is the dense retrieval back-end.
type VectorIndex interface {
	// Search returns the nearest chunks to the query text, optionally
	// constrained by a metadata filter.
	Search(ctx context.Context, query string, k int, filter *models.QueryFilter) ([]models.SearchResult, error)
}

// SparseIndex is the keyword retrieval back-end.
type SparseIndex interface {
	Search(query string, k int) []models.SearchResult
}

// QueryExpander produces query variants.
type QueryExpander interface {
	Expand(query string) []string
}

// Reranker scores candidate texts against a query.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// KnowledgeGraph is the neighborhood expansion the boost stage needs.
type KnowledgeGraph interface {
	RelatedSet(ctx context.Context, seeds []string, hops int) (map[string]bool, error)
}

// SearchOptions tunes one hybrid_search call. Zero values take defaults.
type SearchOptions struct {
	// DenseWeight balances dense against sparse contributions in RRF;
	// 0.5 is the plain unweighted fusion.
	DenseWeight float64
	// DenseK and SparseK override the per-stage candidate pool size.
	DenseK  int
	SparseK int
	// Filter constrains the dense stage. Nil enables auto-detection.
	Filter *models.QueryFilter
	// UseReranking applies the cross-encoder when one is configured.
	UseReranking bool
	// ExpandQueries enables synonym expansion.
	ExpandQueries bool
	// MinScore drops fused candidates below the threshold.
	MinScore float64
}

// DefaultSearchOptions returns the default knobs.
func DefaultSearchOptions() *SearchOptions {
	return &SearchOptions{
		DenseWeight:   0.5,
		UseReranking:  true,
		ExpandQueries: true,
	}
}
