package models

import (
	"math"
	"regexp"
	"strings"
)

// rrfCeiling is the maximum reciprocal-rank-fusion score a document can
// accumulate from two lists with k=60: 2/(60+1).
const rrfCeiling = 2.0 / 61.0

// NormalizeScore maps a pipeline score onto [0,1]. Raw RRF scores live in
// (0, 2/61]; they are scaled against that ceiling. Scores that are already
// normalized (reranked or boosted beyond the RRF range) pass through clamped.
func NormalizeScore(s float64) float64 {
	if s <= 0 {
		return 0
	}
	if s <= rrfCeiling*1.5 {
		return math.Min(s/rrfCeiling, 1)
	}
	return math.Min(s, 1)
}

// NormalizedAverage returns the mean of NormalizeScore over results.
func NormalizedAverage(results []SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += NormalizeScore(r.Score)
	}
	return sum / float64(len(results))
}

var (
	longFormIDRe = regexp.MustCompile(`(?i)^\s*(uu|pp|perpres|permen|perda|perppu|keppres|pmk)\s*(?:no\.?|nomor)?\s*(\d+[a-z]?)\s*(?:tahun|thn\.?|/|_|-)\s*(\d{4})\s*$`)
	canonicalRe  = regexp.MustCompile(`(?i)^([a-z]+)[_-](\d+[a-z]?)[_-](\d{4})((?:[_-]pasal\d+[a-z]?(?:[_-]ayat\d+)?)?)$`)
)

// NormalizeRegulationID normalizes a regulation identifier to the lowercase
// underscore form, e.g. "UU No. 11 Tahun 2020" -> "uu_11_2020". Accepted
// surfaces: "UU_11_2020", "uu-11-2020", "UU No. 11 Tahun 2020". Idempotent;
// unrecognized input is lowercased with separators collapsed to underscores.
func NormalizeRegulationID(id string) string {
	s := strings.TrimSpace(id)
	if s == "" {
		return ""
	}
	if m := canonicalRe.FindStringSubmatch(s); m != nil {
		out := strings.ToLower(m[1] + "_" + m[2] + "_" + m[3])
		if m[4] != "" {
			out += strings.ToLower(strings.ReplaceAll(m[4], "-", "_"))
		}
		return out
	}
	if m := longFormIDRe.FindStringSubmatch(s); m != nil {
		return strings.ToLower(m[1] + "_" + m[2] + "_" + m[3])
	}
	s = strings.ToLower(s)
	s = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(s)
	return s
}

// RegulationIDFromMetadata builds the canonical regulation id for a chunk's
// parent regulation, or "" when the coordinates are incomplete.
func RegulationIDFromMetadata(m ChunkMetadata) string {
	if m.JenisDokumen == "" || m.Nomor == "" || m.Tahun == "" {
		return ""
	}
	return strings.ToLower(m.JenisDokumen) + "_" + m.Nomor + "_" + m.Tahun
}

// AuthorityMultiplier returns the document-type authority boost applied after
// fusion. National-level regulation types outrank regional ones.
func AuthorityMultiplier(jenisDokumen string) float64 {
	switch strings.ToUpper(strings.TrimSpace(jenisDokumen)) {
	case "UU":
		return 1.50
	case "PP":
		return 1.20
	case "PERPRES":
		return 1.10
	case "PERMEN":
		return 1.05
	case "PERDA":
		return 0.60
	default:
		return 1.00
	}
}

// IsNationalType reports whether a jenis_dokumen denotes a national-level
// regulation type.
func IsNationalType(jenisDokumen string) bool {
	switch strings.ToUpper(strings.TrimSpace(jenisDokumen)) {
	case "UU", "PP", "PERPRES", "PERMEN", "PERPPU", "KEPPRES", "PMK":
		return true
	default:
		return false
	}
}
