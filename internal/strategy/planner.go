package strategy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/llm"
	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/retriever"
)

// compoundKeywords mark questions that bundle several legal topics.
var compoundKeywords = []string{
	"dan", "serta", "juga", "selain", "dibandingkan", "antara", "vs", "versus",
}

const decomposePrompt = `Pecah pertanyaan hukum berikut menjadi 2 sampai 4 sub-pertanyaan yang masing-masing dapat dijawab sendiri. Tulis sebagai daftar bernomor, satu sub-pertanyaan per baris, tanpa penjelasan lain.

Pertanyaan: %s`

// listItemRe matches a numbered or bulleted list line.
var listItemRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*(.+)$`)

// IsCompound reports whether the question bundles several topics.
func IsCompound(question string) bool {
	for _, word := range strings.Fields(strings.ToLower(question)) {
		word = strings.Trim(word, "?,.;:")
		for _, kw := range compoundKeywords {
			if word == kw {
				return true
			}
		}
	}
	return false
}

// Planner decomposes compound questions into sub-questions, retrieves each,
// and fuses the lists.
type Planner struct {
	searcher  Searcher
	generator llm.Generator
	logger    *logrus.Logger
}

// NewPlanner builds the strategy.
func NewPlanner(searcher Searcher, generator llm.Generator, logger *logrus.Logger) *Planner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Planner{searcher: searcher, generator: generator, logger: logger}
}

// Decompose asks the LLM to split the question and parses the response as a
// numbered or bulleted list. Returns 2-4 sub-questions, or nil when the
// response does not parse.
func (p *Planner) Decompose(ctx context.Context, question string) ([]string, error) {
	if p.generator == nil {
		return nil, fmt.Errorf("no generator configured")
	}
	response, err := p.generator.Generate(ctx, "", fmt.Sprintf(decomposePrompt, question))
	if err != nil {
		return nil, err
	}

	var subs []string
	for _, line := range strings.Split(response, "\n") {
		if m := listItemRe.FindStringSubmatch(line); m != nil {
			sub := strings.TrimSpace(m[1])
			if sub != "" {
				subs = append(subs, sub)
			}
		}
	}
	if len(subs) < 2 {
		return nil, nil
	}
	if len(subs) > 4 {
		subs = subs[:4]
	}
	return subs, nil
}

// Search decomposes and retrieves per sub-question. Unparseable
// decompositions and LLM failures fall back to direct retrieval.
func (p *Planner) Search(ctx context.Context, question string, k int, opts *retriever.SearchOptions) ([]models.SearchResult, error) {
	subs, err := p.Decompose(ctx, question)
	if err != nil || len(subs) == 0 {
		if err != nil {
			p.logger.WithError(err).Warn("Decomposition failed, using direct retrieval")
		}
		return p.searcher.HybridSearch(ctx, question, k, opts)
	}

	p.logger.WithFields(logrus.Fields{"sub_questions": len(subs)}).Debug("Question decomposed")

	lists := make([][]models.SearchResult, 0, len(subs))
	for _, sub := range subs {
		results, err := p.searcher.HybridSearch(ctx, sub, k, opts)
		if err != nil {
			p.logger.WithError(err).Warn("Sub-question retrieval failed")
			continue
		}
		lists = append(lists, results)
	}
	if len(lists) == 0 {
		return p.searcher.HybridSearch(ctx, question, k, opts)
	}

	merged := RRFMerge(lists...)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}
