package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/llm"
	"github.com/hukumqa/hukumqa/internal/models"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```\\s*$")
	bareJSONRe   = regexp.MustCompile(`(?s)(\{[^{}]*"cited_sources"[^{}]*\})\s*$`)
	citationRe   = regexp.MustCompile(`\[(\d+)\]`)
)

type answerFooter struct {
	CitedSources []int `json:"cited_sources"`
}

// ExtractCitedSources parses the structured JSON footer from a generated
// answer. On success the cleaned answer (text before the footer) and the
// trusted cited-sources list are returned. On failure it falls back to
// scanning the answer for [n] references.
func ExtractCitedSources(answer string) (cleaned string, cited []int, fromFooter bool) {
	for _, re := range []*regexp.Regexp{fencedJSONRe, bareJSONRe} {
		m := re.FindStringSubmatchIndex(answer)
		if m == nil {
			continue
		}
		var footer answerFooter
		if err := json.Unmarshal([]byte(answer[m[2]:m[3]]), &footer); err != nil {
			continue
		}
		return strings.TrimSpace(answer[:m[0]]), footer.CitedSources, true
	}

	cleaned = strings.TrimSpace(answer)
	seen := make(map[int]bool)
	for _, m := range citationRe.FindAllStringSubmatch(cleaned, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		cited = append(cited, n)
	}
	return cleaned, cited, false
}

// ValidateCitations compares cited reference numbers against the available
// citation numbers and grades the hallucination risk.
func ValidateCitations(cited []int, available int) models.ValidationResult {
	valid := make(map[int]bool)
	var invalid []int
	for _, n := range cited {
		if n >= 1 && n <= available {
			valid[n] = true
		} else {
			invalid = append(invalid, n)
		}
	}

	coverage := 0.0
	if available > 0 {
		coverage = float64(len(valid)) / float64(available)
	}

	result := models.ValidationResult{
		IsValid:          len(invalid) == 0 && len(valid) > 0,
		CitationCoverage: coverage,
		MissingCitations: invalid,
	}

	switch {
	case len(cited) == 0:
		result.HallucinationRisk = models.RiskHigh
		result.Warnings = append(result.Warnings, "Jawaban tidak mengutip sumber apa pun.")
	case len(invalid) > 0:
		result.HallucinationRisk = models.RiskMedium
		result.Warnings = append(result.Warnings, fmt.Sprintf("Jawaban mengutip sumber yang tidak tersedia: %v.", invalid))
	case coverage < 0.3:
		result.HallucinationRisk = models.RiskMedium
		result.Warnings = append(result.Warnings, "Jawaban hanya mengutip sebagian kecil sumber yang tersedia.")
	default:
		result.HallucinationRisk = models.RiskLow
	}
	return result
}

// groundingBudget is the soft deadline for the judge call.
const groundingBudget = 5 * time.Second

// groundingJudgeSnippets bounds how many citation snippets the judge sees.
const groundingJudgeSnippets = 5

const groundingPrompt = `Anda adalah penilai yang memeriksa apakah sebuah jawaban hukum didukung oleh kutipan sumbernya.

Sumber:
%s

Jawaban yang dinilai:
%s

Balas HANYA dengan JSON dalam format:
{"grounding_score": 0.0, "ungrounded_claims": ["..."], "grounded_claims": ["..."]}

grounding_score adalah angka antara 0 dan 1 yang menyatakan seberapa besar jawaban didukung sumber.`

type groundingVerdict struct {
	GroundingScore   *float64 `json:"grounding_score"`
	UngroundedClaims []string `json:"ungrounded_claims"`
	GroundedClaims   []string `json:"grounded_claims"`
}

// VerifyGrounding asks the LLM to judge whether the answer is supported by
// the top citation snippets. Failures leave the grounding fields unset
// rather than blocking the response.
func VerifyGrounding(ctx context.Context, generator llm.Generator, answer string, citations []models.Citation, logger *logrus.Logger) (*float64, []string) {
	if generator == nil || len(citations) == 0 {
		return nil, nil
	}

	n := len(citations)
	if n > groundingJudgeSnippets {
		n = groundingJudgeSnippets
	}
	var b strings.Builder
	for _, c := range citations[:n] {
		snippet, _ := c.Metadata["snippet"].(string)
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", c.Number, c.Citation, snippet)
	}

	ctx, cancel := context.WithTimeout(ctx, groundingBudget)
	defer cancel()

	response, err := generator.Generate(ctx, "", fmt.Sprintf(groundingPrompt, b.String(), answer))
	if err != nil {
		logger.WithError(err).Warn("Grounding verification failed")
		return nil, nil
	}

	raw := response
	if m := fencedJSONRe.FindStringSubmatch(response); m != nil {
		raw = m[1]
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		logger.Warn("Grounding verdict is not JSON")
		return nil, nil
	}

	var verdict groundingVerdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &verdict); err != nil {
		logger.WithError(err).Warn("Grounding verdict failed to parse")
		return nil, nil
	}
	return verdict.GroundingScore, verdict.UngroundedClaims
}
