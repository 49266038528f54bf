package legalref

import (
	"regexp"
	"strings"

	"github.com/hukumqa/hukumqa/internal/models"
)

var (
	// "Undang-Undang Nomor 11 Tahun 2020"
	standardCitationRe = regexp.MustCompile(`(?i)\b(undang-undang|peraturan pemerintah pengganti undang-undang|peraturan pemerintah|peraturan presiden|peraturan menteri keuangan|peraturan menteri|keputusan presiden)\s+(?:no\.?\s*|nomor\s+)(\d+)\s+tahun\s+(\d{4})`)
	// "UU No. 11/2020", "PP 35/2021"
	abbreviatedCitationRe = regexp.MustCompile(`(?i)\b(uu|pp|perpres|permen|perda|keppres|pmk|perppu)\s*(?:no\.?\s*)?(\d+)\s*/\s*(\d{4})`)
	// "sebagaimana dimaksud dalam ..." / "sebagaimana telah diubah dengan ..."
	crossRefRe = regexp.MustCompile(`(?i)sebagaimana\s+(?:dimaksud\s+dalam|telah\s+(?:beberapa\s+kali\s+)?diubah\s+(?:terakhir\s+)?dengan)\s+`)
	// "telah [tiga kali] diubah/dicabut/diganti dengan ..."
	amendmentClauseRe = regexp.MustCompile(`(?i)telah\s+(?:(?:\w+\s+)?kali\s+)?(diubah|dicabut|diganti|dilengkapi)\s+(?:terakhir\s+)?dengan\s+`)
	// Title form: "Perubahan [Kedua] Atas Undang-Undang Nomor ..."
	titleAmendmentRe = regexp.MustCompile(`(?i)\b(perubahan(?:\s+\w+)?\s+atas|pencabutan|penggantian)\s+`)
)

var longJenis = map[string]string{
	"undang-undang": "UU",
	"peraturan pemerintah pengganti undang-undang": "Perppu",
	"peraturan pemerintah":      "PP",
	"peraturan presiden":        "Perpres",
	"peraturan menteri keuangan": "PMK",
	"peraturan menteri":         "Permen",
	"keputusan presiden":        "Keppres",
}

var shortJenis = map[string]string{
	"uu": "UU", "pp": "PP", "perpres": "Perpres", "permen": "Permen",
	"perda": "Perda", "keppres": "Keppres", "pmk": "PMK", "perppu": "Perppu",
}

// ExtractReferences returns all regulation citations found in text,
// deduplicated by canonical form.
func ExtractReferences(text string) []models.LegalReference {
	seen := make(map[string]struct{})
	var refs []models.LegalReference

	add := func(jenis, nomor, tahun string) {
		ref := models.LegalReference{Jenis: jenis, Nomor: nomor, Tahun: tahun}
		key := strings.ToLower(ref.Canonical())
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		refs = append(refs, ref)
	}

	for _, m := range standardCitationRe.FindAllStringSubmatch(text, -1) {
		if jenis, ok := longJenis[strings.ToLower(m[1])]; ok {
			add(jenis, m[2], m[3])
		}
	}
	for _, m := range abbreviatedCitationRe.FindAllStringSubmatch(text, -1) {
		if jenis, ok := shortJenis[strings.ToLower(m[1])]; ok {
			add(jenis, m[2], m[3])
		}
	}
	return refs
}

// ExtractCrossReferences returns references that appear inside
// "sebagaimana dimaksud dalam ..." style clauses, labelled accordingly.
func ExtractCrossReferences(text string) []models.LegalReference {
	var refs []models.LegalReference
	seen := make(map[string]struct{})

	for _, loc := range crossRefRe.FindAllStringIndex(text, -1) {
		tail := clauseTail(text, loc[1])
		for _, ref := range ExtractReferences(tail) {
			ref.Relation = "cross_reference"
			key := strings.ToLower(ref.Canonical())
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}

// ExtractAmendments detects amendment clauses in a chunk's body text.
// sourceID is the canonical id of the regulation the text belongs to.
// Body-text detections carry confidence 1.0.
func ExtractAmendments(sourceID, text string) []models.AmendmentRelation {
	var rels []models.AmendmentRelation

	for _, m := range amendmentClauseRe.FindAllStringSubmatchIndex(text, -1) {
		verb := strings.ToLower(text[m[2]:m[3]])
		tail := clauseTail(text, m[1])
		targets := ExtractReferences(tail)
		if len(targets) == 0 {
			continue
		}
		target := targets[0]
		rels = append(rels, models.AmendmentRelation{
			// The cited regulation acts on the one being read.
			Source:     models.NormalizeRegulationID(target.Jenis + "_" + target.Nomor + "_" + target.Tahun),
			Target:     sourceID,
			Type:       amendmentTypeForVerb(verb),
			Text:       strings.TrimSpace(text[m[0]:min(m[1]+len(tail), len(text))]),
			Confidence: 1.0,
		})
	}
	return rels
}

// ExtractTitleAmendment parses a regulation title of the form
// "Perubahan [Kedua] Atas Undang-Undang Nomor ..." into an amendment
// relation with confidence 0.8, or nil when the title is not an amendment.
func ExtractTitleAmendment(sourceID, title string) *models.AmendmentRelation {
	m := titleAmendmentRe.FindStringSubmatchIndex(title)
	if m == nil {
		return nil
	}
	marker := strings.ToLower(title[m[2]:m[3]])
	targets := ExtractReferences(title[m[1]:])
	if len(targets) == 0 {
		return nil
	}
	target := targets[0]

	amendType := models.AmendmentAmends
	if strings.HasPrefix(marker, "pencabutan") {
		amendType = models.AmendmentRevokes
	} else if strings.HasPrefix(marker, "penggantian") {
		amendType = models.AmendmentReplaces
	}

	return &models.AmendmentRelation{
		Source:     sourceID,
		Target:     models.NormalizeRegulationID(target.Jenis + "_" + target.Nomor + "_" + target.Tahun),
		Type:       amendType,
		Text:       strings.TrimSpace(title),
		Confidence: 0.8,
	}
}

func amendmentTypeForVerb(verb string) models.AmendmentType {
	switch verb {
	case "dicabut":
		return models.AmendmentRevokes
	case "diganti":
		return models.AmendmentReplaces
	case "dilengkapi":
		return models.AmendmentSupplements
	default:
		return models.AmendmentAmends
	}
}

// clauseTail returns the text following a clause marker, cut at the first
// sentence boundary so a citation from the next sentence is not attributed
// to this clause.
func clauseTail(text string, from int) string {
	tail := text[from:]
	for i := 0; i < len(tail); i++ {
		c := tail[i]
		if c == ';' || (c == '.' && !abbrevPeriod(tail, i)) {
			tail = tail[:i]
			break
		}
	}
	const maxClause = 300
	if len(tail) > maxClause {
		tail = tail[:maxClause]
	}
	return tail
}

// abbrevPeriod reports whether the period at i belongs to the "No."
// abbreviation, as in "UU No. 6/2023", rather than ending a sentence.
func abbrevPeriod(s string, i int) bool {
	if i < 2 || !strings.EqualFold(s[i-2:i], "no") {
		return false
	}
	if i >= 3 {
		c := s[i-3]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
