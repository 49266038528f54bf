// Package legalref detects structured references to Indonesian regulations.
// The query scope turns "Pasal 5 UU 11/2020" into a metadata filter for the
// vector index; the corpus scope extracts citations and amendment clauses
// from regulation text for the knowledge graph.
package legalref

import (
	"regexp"
	"strings"

	"github.com/hukumqa/hukumqa/internal/models"
)

var (
	// "Pasal 5 [ayat (2)] UU [Nomor] 11 [Tahun|/] 2020"
	pasalRefRe = regexp.MustCompile(`(?i)\bpasal\s+(\d+[a-z]?)\s*(?:ayat\s*\(\s*(\d+)\s*\)\s*)?(uu|pp|perpres|permen|perda|perppu)\s*(?:no\.?\s*|nomor\s+)?(\d+)\s*(?:/\s*|tahun\s+)(\d{4})`)
	// "UU Nomor 13 Tahun 2003"
	jenisNomorTahunRe = regexp.MustCompile(`(?i)\b(uu|pp|perpres|permen|perda|perppu)\s+(?:no\.?\s*|nomor\s+)(\d+)\s+tahun\s+(\d{4})`)
	// "PP 5/2021"
	compactRefRe = regexp.MustCompile(`(?i)\b(uu|pp|perpres|permen|perda|perppu)\s*(?:no\.?\s*)?(\d+)\s*/\s*(\d{4})`)
)

// DetectFilter scans a query for a regulation reference and returns the
// corresponding metadata filter, or nil when nothing is detected.
func DetectFilter(query string) *models.QueryFilter {
	if m := pasalRefRe.FindStringSubmatch(query); m != nil {
		f := &models.QueryFilter{
			JenisDokumen: strings.ToUpper(m[3]),
			Nomor:        m[4],
			Tahun:        m[5],
			Pasal:        m[1],
		}
		if m[2] != "" {
			f.Ayat = m[2]
		}
		return normalizeFilterJenis(f)
	}
	if m := jenisNomorTahunRe.FindStringSubmatch(query); m != nil {
		return normalizeFilterJenis(&models.QueryFilter{
			JenisDokumen: strings.ToUpper(m[1]),
			Nomor:        m[2],
			Tahun:        m[3],
		})
	}
	if m := compactRefRe.FindStringSubmatch(query); m != nil {
		return normalizeFilterJenis(&models.QueryFilter{
			JenisDokumen: strings.ToUpper(m[1]),
			Nomor:        m[2],
			Tahun:        m[3],
		})
	}
	return nil
}

// normalizeFilterJenis maps mixed-case jenis tokens onto the canonical
// payload spelling (UU, PP, Perpres, Permen, Perda, Perppu).
func normalizeFilterJenis(f *models.QueryFilter) *models.QueryFilter {
	switch strings.ToUpper(f.JenisDokumen) {
	case "UU":
		f.JenisDokumen = "UU"
	case "PP":
		f.JenisDokumen = "PP"
	case "PERPRES":
		f.JenisDokumen = "Perpres"
	case "PERMEN":
		f.JenisDokumen = "Permen"
	case "PERDA":
		f.JenisDokumen = "Perda"
	case "PERPPU":
		f.JenisDokumen = "Perppu"
	}
	return f
}
