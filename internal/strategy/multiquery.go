package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/retriever"
)

// questionWords are stripped from a question to extract its core topic.
var questionWords = map[string]bool{
	"apa": true, "bagaimana": true, "siapa": true, "kapan": true,
	"dimana": true, "mengapa": true, "berapa": true, "apakah": true,
	"itu": true, "yang": true, "adalah": true, "dari": true,
}

// variantTemplates produce the five deterministic reformulations.
var variantTemplates = []string{
	"%s",
	"peraturan tentang %s",
	"dasar hukum %s",
	"ketentuan %s menurut undang-undang",
	"penjelasan %s dalam hukum indonesia",
}

// MultiQuery retrieves with five deterministic reformulations of the
// question and fuses the lists. No LLM is involved.
type MultiQuery struct {
	searcher Searcher
	logger   *logrus.Logger
}

// NewMultiQuery builds the strategy.
func NewMultiQuery(searcher Searcher, logger *logrus.Logger) *MultiQuery {
	if logger == nil {
		logger = logrus.New()
	}
	return &MultiQuery{searcher: searcher, logger: logger}
}

// Variants returns the five reformulations for a question.
func Variants(question string) []string {
	topic := CoreTopic(question)
	out := make([]string, len(variantTemplates))
	for i, tmpl := range variantTemplates {
		out[i] = fmt.Sprintf(tmpl, topic)
	}
	return out
}

// CoreTopic strips Indonesian question words and punctuation from the
// question. An all-question-word input falls back to the original.
func CoreTopic(question string) string {
	cleaned := strings.ToLower(strings.TrimSpace(question))
	cleaned = strings.Trim(cleaned, "?!.")

	var kept []string
	for _, word := range strings.Fields(cleaned) {
		if !questionWords[word] {
			kept = append(kept, word)
		}
	}
	if len(kept) == 0 {
		return cleaned
	}
	return strings.Join(kept, " ")
}

// Search runs each variant and RRF-merges the lists.
func (m *MultiQuery) Search(ctx context.Context, question string, k int, opts *retriever.SearchOptions) ([]models.SearchResult, error) {
	variants := Variants(question)

	lists := make([][]models.SearchResult, 0, len(variants))
	var lastErr error
	for _, variant := range variants {
		results, err := m.searcher.HybridSearch(ctx, variant, k, opts)
		if err != nil {
			lastErr = err
			m.logger.WithError(err).WithField("variant", variant).Warn("Variant retrieval failed")
			continue
		}
		lists = append(lists, results)
	}
	if len(lists) == 0 {
		return nil, fmt.Errorf("all variants failed: %w", lastErr)
	}

	merged := RRFMerge(lists...)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}
