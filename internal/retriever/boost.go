package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/rerank"
)

// nationalCues are phrases whose answers live in national law; when no
// reranker can reorder candidates, regional regulations are demoted for
// these queries.
var nationalCues = []string{
	"mendirikan pt",
	"pendirian pt",
	"upah minimum",
	"phk",
	"pemutusan hubungan kerja",
	"hukum nasional",
	"pajak penghasilan",
	"perseroan terbatas",
	"izin usaha",
	"cipta kerja",
}

// applyKGBoost expands the top candidates one hop through the knowledge
// graph and multiplies every candidate whose regulation lands in the
// expanded set. Traversal overruns skip the boost for this request.
func (r *Retriever) applyKGBoost(ctx context.Context, candidates []models.SearchResult) {
	if r.kg == nil || len(candidates) == 0 {
		return
	}

	seedCount := r.config.KGSeeds
	if seedCount > len(candidates) {
		seedCount = len(candidates)
	}
	seen := make(map[string]bool, seedCount)
	seeds := make([]string, 0, seedCount)
	for _, c := range candidates[:seedCount] {
		id := models.RegulationIDFromMetadata(c.Metadata)
		if id != "" && !seen[id] {
			seen[id] = true
			seeds = append(seeds, id)
		}
	}
	if len(seeds) == 0 {
		return
	}

	boostCtx, cancel := context.WithTimeout(ctx, r.config.KGBudget)
	defer cancel()

	related, err := r.kg.RelatedSet(boostCtx, seeds, r.config.KGHops)
	if err != nil {
		r.logger.WithError(err).Warn("Knowledge graph boost skipped")
		if r.metrics != nil {
			r.metrics.KGBoostSkips.Inc()
		}
		return
	}

	boosted := 0
	for i := range candidates {
		id := models.RegulationIDFromMetadata(candidates[i].Metadata)
		if id != "" && related[id] {
			candidates[i].Score *= r.config.KGBoost
			candidates[i].Stage = models.StageBoosted
			boosted++
		}
	}
	if boosted > 0 {
		sortByScore(candidates)
	}
}

// applyAuthorityBoost weighs candidates by regulation rank and re-sorts.
// The stable sort keeps same-type candidates with equal scores in order.
func applyAuthorityBoost(candidates []models.SearchResult) {
	for i := range candidates {
		candidates[i].Score *= models.AuthorityMultiplier(candidates[i].Metadata.JenisDokumen)
		candidates[i].Stage = models.StageBoosted
	}
	sortByScore(candidates)
}

// hasNationalCue reports whether the query names a national-law topic.
func hasNationalCue(query string) bool {
	q := strings.ToLower(query)
	for _, cue := range nationalCues {
		if strings.Contains(q, cue) {
			return true
		}
	}
	return false
}

// preferNationalLaw stably moves national regulation types ahead of
// regional ones without disturbing order within each group.
func preferNationalLaw(candidates []models.SearchResult) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ni := models.IsNationalType(candidates[i].Metadata.JenisDokumen)
		nj := models.IsNationalType(candidates[j].Metadata.JenisDokumen)
		return ni && !nj
	})
}

func sortByScore(candidates []models.SearchResult) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

func normalizeRerankScore(raw float64) float64 {
	return rerank.Normalize(raw)
}
