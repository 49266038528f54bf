package chain

import (
	"math"

	"github.com/hukumqa/hukumqa/internal/models"
)

// Factor weights. The score half splits 0.7 top / 0.3 average.
const (
	weightScores      = 0.40
	weightAuthority   = 0.20
	weightConsistency = 0.20
	weightCount       = 0.20
)

const (
	topWeight = 0.7
	avgWeight = 0.3

	diminishAbove = 0.85
	penalizeBelow = 0.30

	countThreshold = 0.3
	countSaturate  = 5

	labelTinggiMin = 0.65
	labelSedangMin = 0.40
)

// Authority multipliers span [0.6, 1.5]; mapped onto [0,1] for the factor.
const (
	authorityFloor = 0.60
	authoritySpan  = 0.90
)

// ScoreConfidence computes the calibrated 4-factor retrieval confidence.
// Scores are normalized against the RRF ceiling before weighting.
func ScoreConfidence(results []models.SearchResult) models.ConfidenceScore {
	if len(results) == 0 {
		return models.ConfidenceScore{Label: models.ConfidenceTidakAda}
	}

	normalized := make([]float64, len(results))
	for i, r := range results {
		normalized[i] = models.NormalizeScore(r.Score)
	}

	top := normalized[0]
	for _, s := range normalized {
		if s > top {
			top = s
		}
	}
	avg := 0.0
	for _, s := range normalized {
		avg += s
	}
	avg /= float64(len(normalized))

	scoreFactor := topWeight*top + avgWeight*avg

	raw := weightScores*scoreFactor +
		weightAuthority*authorityFactor(results) +
		weightConsistency*consistencyFactor(normalized) +
		weightCount*countFactor(normalized)

	switch {
	case raw > diminishAbove:
		raw = diminishAbove + (raw-diminishAbove)*0.5
	case raw < penalizeBelow:
		raw *= 0.8
	}
	raw = math.Min(raw, 1)

	return models.ConfidenceScore{
		Score:    raw,
		Label:    confidenceLabel(raw),
		TopScore: top,
		AvgScore: avg,
	}
}

func confidenceLabel(score float64) string {
	switch {
	case score >= labelTinggiMin:
		return models.ConfidenceTinggi
	case score >= labelSedangMin:
		return models.ConfidenceSedang
	default:
		return models.ConfidenceRendah
	}
}

// authorityFactor averages the document-type authority of the top 3 results,
// rescaled from the multiplier range onto [0,1].
func authorityFactor(results []models.SearchResult) float64 {
	n := len(results)
	if n > 3 {
		n = 3
	}
	sum := 0.0
	for _, r := range results[:n] {
		m := models.AuthorityMultiplier(r.Metadata.JenisDokumen)
		sum += (m - authorityFloor) / authoritySpan
	}
	return sum / float64(n)
}

// consistencyFactor rewards tightly clustered scores. Dispersion is measured
// by the coefficient of variation, which is invariant to the score scale.
func consistencyFactor(scores []float64) float64 {
	if len(scores) < 2 {
		return 1
	}
	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))
	cv := math.Sqrt(variance) / mean
	return math.Max(0, 1-cv)
}

// countFactor saturates once enough results clear the relevance threshold.
func countFactor(scores []float64) float64 {
	count := 0
	for _, s := range scores {
		if s >= countThreshold {
			count++
		}
	}
	return math.Min(float64(count)/countSaturate, 1)
}
