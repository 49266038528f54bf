package retriever

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/legalref"
	"github.com/hukumqa/hukumqa/internal/metrics"
	"github.com/hukumqa/hukumqa/internal/models"
)

// Config tunes the fusion and boost stages.
type Config struct {
	// RRFK is the Reciprocal Rank Fusion constant.
	RRFK int `json:"rrf_k"`
	// KGBoost multiplies candidates related to the top results.
	KGBoost float64 `json:"kg_boost"`
	// KGSeeds is how many top candidates seed the graph expansion.
	KGSeeds int `json:"kg_seeds"`
	// KGHops is the expansion depth.
	KGHops int `json:"kg_hops"`
	// KGBudget bounds the graph traversal.
	KGBudget time.Duration `json:"kg_budget"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() *Config {
	return &Config{
		RRFK:     60,
		KGBoost:  1.15,
		KGSeeds:  5,
		KGHops:   1,
		KGBudget: 200 * time.Millisecond,
	}
}

// Retriever is the hybrid search engine. All collaborators except the dense
// index are optional; missing ones degrade the pipeline instead of failing.
type Retriever struct {
	dense    VectorIndex
	sparse   SparseIndex
	expander QueryExpander
	reranker Reranker
	kg       KnowledgeGraph
	config   *Config
	metrics  *metrics.Collector
	logger   *logrus.Logger
}

// New builds a hybrid retriever.
func New(dense VectorIndex, sparse SparseIndex, expander QueryExpander, reranker Reranker, kg KnowledgeGraph, config *Config, logger *logrus.Logger) *Retriever {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Retriever{
		dense:    dense,
		sparse:   sparse,
		expander: expander,
		reranker: reranker,
		kg:       kg,
		config:   config,
		logger:   logger,
	}
}

// WithMetrics attaches a collector. A nil collector leaves the retriever
// unobserved.
func (r *Retriever) WithMetrics(m *metrics.Collector) *Retriever {
	r.metrics = m
	return r
}

// HasReranker reports whether a cross-encoder is configured.
func (r *Retriever) HasReranker() bool {
	return r.reranker != nil
}

// HybridSearch runs the full pipeline: candidate pooling, auto-filtering,
// query expansion, dense and sparse fan-out, RRF fusion, graph and authority
// boosting, and optional reranking.
func (r *Retriever) HybridSearch(ctx context.Context, query string, k int, opts *SearchOptions) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	if opts == nil {
		opts = DefaultSearchOptions()
	}
	if opts.DenseWeight <= 0 || opts.DenseWeight >= 1 {
		opts.DenseWeight = 0.5
	}
	start := time.Now()

	pool := r.poolSize(k, opts)
	denseK := opts.DenseK
	if denseK <= 0 {
		denseK = pool
	}
	sparseK := opts.SparseK
	if sparseK <= 0 {
		sparseK = pool
	}

	filter := opts.Filter
	autoFiltered := false
	if filter.IsZero() {
		if detected := legalref.DetectFilter(query); detected != nil {
			filter = detected
			autoFiltered = true
			r.logger.WithFields(logrus.Fields{
				"jenis": detected.JenisDokumen,
				"nomor": detected.Nomor,
				"tahun": detected.Tahun,
			}).Debug("Legal reference detected, filter applied")
		}
	}

	variants := []string{query}
	if opts.ExpandQueries && r.expander != nil {
		variants = r.expander.Expand(query)
	}

	dense, sparse, err := r.fanOut(ctx, variants, denseK, sparseK, filter)
	if err != nil {
		return nil, err
	}

	// Zero dense results under an auto-detected filter: retry unfiltered,
	// exactly once.
	if autoFiltered && len(dense) == 0 {
		r.logger.Debug("Filtered dense stage empty, retrying without filter")
		if r.metrics != nil {
			r.metrics.FilterFallbacks.Inc()
		}
		dense, _, err = r.fanOut(ctx, variants, denseK, 0, nil)
		if err != nil {
			return nil, err
		}
	}

	fused := r.fuse(dense, sparse, opts.DenseWeight)

	r.applyKGBoost(ctx, fused)
	applyAuthorityBoost(fused)

	if !r.HasReranker() && hasNationalCue(query) {
		preferNationalLaw(fused)
	}

	if opts.MinScore > 0 {
		kept := fused[:0]
		for _, c := range fused {
			if c.Score >= opts.MinScore {
				kept = append(kept, c)
			}
		}
		fused = kept
	}

	if opts.UseReranking && r.reranker != nil && len(fused) > 0 {
		rerankStart := time.Now()
		fused = r.rerank(ctx, query, fused)
		if r.metrics != nil {
			r.metrics.SearchDuration.WithLabelValues(models.StageReranked).Observe(time.Since(rerankStart).Seconds())
		}
	}

	if len(fused) > k {
		fused = fused[:k]
	}

	if r.metrics != nil {
		r.metrics.SearchDuration.WithLabelValues(models.StageFused).Observe(time.Since(start).Seconds())
		r.metrics.SearchResults.WithLabelValues(models.StageDense).Observe(float64(len(dense)))
		r.metrics.SearchResults.WithLabelValues(models.StageSparse).Observe(float64(len(sparse)))
		r.metrics.SearchResults.WithLabelValues(models.StageFused).Observe(float64(len(fused)))
	}

	r.logger.WithFields(logrus.Fields{
		"dense_count":  len(dense),
		"sparse_count": len(sparse),
		"returned":     len(fused),
		"filtered":     !filter.IsZero(),
	}).Debug("Hybrid search completed")
	return fused, nil
}

// poolSize returns the candidate pool per stage. A reranker narrows a pool
// of 3k; without one the pool grows to 4k to compensate; with reranking
// disabled by the caller 2k suffices.
func (r *Retriever) poolSize(k int, opts *SearchOptions) int {
	switch {
	case opts.UseReranking && r.reranker != nil:
		return k * 3
	case r.reranker == nil:
		return k * 4
	default:
		return k * 2
	}
}

// fanOut runs the dense and sparse stages for every variant in parallel and
// returns the per-stage deduped, rank-ordered lists. sparseK <= 0 skips the
// sparse stage.
func (r *Retriever) fanOut(ctx context.Context, variants []string, denseK, sparseK int, filter *models.QueryFilter) (dense, sparse []models.SearchResult, err error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		denseAll []models.SearchResult
		sparseAll []models.SearchResult
		denseErr error
	)

	for _, variant := range variants {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			results, err := r.dense.Search(ctx, q, denseK, filter)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if denseErr == nil {
					denseErr = err
				}
				return
			}
			denseAll = append(denseAll, results...)
		}(variant)

		if r.sparse != nil && sparseK > 0 {
			wg.Add(1)
			go func(q string) {
				defer wg.Done()
				results := r.sparse.Search(q, sparseK)
				mu.Lock()
				sparseAll = append(sparseAll, results...)
				mu.Unlock()
			}(variant)
		}
	}
	wg.Wait()

	if denseErr != nil {
		return nil, nil, fmt.Errorf("dense stage failed: %w", denseErr)
	}
	return dedupByMaxScore(denseAll, models.StageDense), dedupByMaxScore(sparseAll, models.StageSparse), nil
}

// dedupByMaxScore collapses duplicates keeping the best score, then orders
// by score descending with chunk id as tiebreak.
func dedupByMaxScore(results []models.SearchResult, stage string) []models.SearchResult {
	best := make(map[string]models.SearchResult, len(results))
	for _, res := range results {
		if prev, ok := best[res.ID]; !ok || res.Score > prev.Score {
			res.Stage = stage
			best[res.ID] = res
		}
	}
	out := make([]models.SearchResult, 0, len(best))
	for _, res := range best {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// fuse merges the two rank-ordered lists with weighted Reciprocal Rank
// Fusion. At weight 0.5 both stages contribute the classic 1/(k+rank).
func (r *Retriever) fuse(dense, sparse []models.SearchResult, denseWeight float64) []models.SearchResult {
	k := float64(r.config.RRFK)
	scores := make(map[string]float64)
	docs := make(map[string]models.SearchResult)

	for i, res := range dense {
		scores[res.ID] += 2 * denseWeight / (k + float64(i+1))
		if _, ok := docs[res.ID]; !ok {
			docs[res.ID] = res
		}
	}
	for i, res := range sparse {
		scores[res.ID] += 2 * (1 - denseWeight) / (k + float64(i+1))
		if _, ok := docs[res.ID]; !ok {
			docs[res.ID] = res
		}
	}

	fused := make([]models.SearchResult, 0, len(scores))
	for id, score := range scores {
		res := docs[id]
		res.Score = score
		res.Stage = models.StageFused
		fused = append(fused, res)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})
	return fused
}

// rerank scores the candidate pool with the cross-encoder and replaces
// fusion scores with normalized relevance. Failures keep the fused order.
func (r *Retriever) rerank(ctx context.Context, query string, candidates []models.SearchResult) []models.SearchResult {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	raw, err := r.reranker.Score(ctx, query, texts)
	if err != nil {
		r.logger.WithError(err).Warn("Reranking failed, keeping fused order")
		return candidates
	}

	reranked := make([]models.SearchResult, len(candidates))
	for i, c := range candidates {
		c.Score = normalizeRerankScore(raw[i])
		c.Stage = models.StageReranked
		reranked[i] = c
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	return reranked
}
