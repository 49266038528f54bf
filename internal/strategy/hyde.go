package strategy

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/llm"
	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/retriever"
)

const hydePrompt = `Anda adalah pakar hukum Indonesia. Tuliskan jawaban ideal sepanjang 100-200 kata untuk pertanyaan berikut, seolah-olah jawaban tersebut berasal dari peraturan perundang-undangan yang relevan. Jangan menyebutkan bahwa ini jawaban hipotetis.

Pertanyaan: %s

Jawaban:`

// HyDE retrieves with a hypothetical LLM-written answer alongside the
// original question and fuses both result lists.
type HyDE struct {
	searcher  Searcher
	generator llm.Generator
	logger    *logrus.Logger
}

// NewHyDE builds the strategy.
func NewHyDE(searcher Searcher, generator llm.Generator, logger *logrus.Logger) *HyDE {
	if logger == nil {
		logger = logrus.New()
	}
	return &HyDE{searcher: searcher, generator: generator, logger: logger}
}

// Search runs the strategy. LLM failure degrades to plain retrieval with
// the original question.
func (h *HyDE) Search(ctx context.Context, question string, k int, opts *retriever.SearchOptions) ([]models.SearchResult, error) {
	original, err := h.searcher.HybridSearch(ctx, question, k, opts)
	if err != nil {
		return nil, err
	}

	if h.generator == nil {
		return original, nil
	}
	hypothetical, err := h.generator.Generate(ctx, "", fmt.Sprintf(hydePrompt, question))
	if err != nil || hypothetical == "" {
		h.logger.WithError(err).Warn("Hypothetical generation failed, using direct retrieval")
		return original, nil
	}

	hydeResults, err := h.searcher.HybridSearch(ctx, hypothetical, k, opts)
	if err != nil {
		h.logger.WithError(err).Warn("Hypothetical retrieval failed, using direct retrieval")
		return original, nil
	}

	merged := RRFMerge(original, hydeResults)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}
