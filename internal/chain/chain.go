// Package chain assembles the full question answering pipeline: strategy
// selection, retrieval, confidence gating, prompt construction, generation,
// citation validation, and grounding verification.
package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/llm"
	"github.com/hukumqa/hukumqa/internal/metrics"
	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/retriever"
	"github.com/hukumqa/hukumqa/internal/strategy"
	"github.com/hukumqa/hukumqa/internal/tokenizer"
)

// Fixed user-visible refusals.
const (
	refusalNoResults = "Maaf, saya tidak menemukan peraturan yang relevan untuk menjawab pertanyaan Anda. Mohon ajukan pertanyaan dengan kata kunci yang lebih spesifik."
	refusalLowConf   = "Maaf, saya tidak cukup yakin dengan hasil pencarian untuk menjawab pertanyaan Anda secara akurat. Mohon pertimbangkan untuk berkonsultasi dengan ahli hukum."
)

// confidenceGate is the numeric confidence below which generation is
// refused outright.
const confidenceGate = 0.15

// historyTurns is how many past turns QueryWithHistory compresses in.
const historyTurns = 3

// historyAnswerLen truncates past answers in the compressed history.
const historyAnswerLen = 200

// DefaultK is the answer context size when the caller does not specify one.
const DefaultK = 5

// Options controls one query.
type Options struct {
	K      int
	Filter *models.QueryFilter
	Mode   Mode

	UseAgentic       bool
	UseHyDE          bool
	UseMultiQuery    bool
	UseDecomposition bool
	UseCRAG          bool
	UseParentChild   bool
	SkipGrounding    bool

	Search *retriever.SearchOptions
}

func (o *Options) normalized() Options {
	out := Options{Mode: ModeAnalysis, K: DefaultK}
	if o != nil {
		out = *o
	}
	if out.K <= 0 {
		out.K = DefaultK
	}
	if out.Mode == "" {
		out.Mode = ModeAnalysis
	}
	return out
}

// Chain is the serving pipeline. All dependencies are read-only after
// construction; Chain is safe for concurrent use.
type Chain struct {
	searcher    strategy.Searcher
	generator   llm.Generator
	agent       *strategy.Agent
	hyde        *strategy.HyDE
	multiQuery  *strategy.MultiQuery
	planner     *strategy.Planner
	crag        *strategy.CRAG
	parentChild *strategy.ParentChild
	store       *strategy.ParentStore
	tokens      *tokenizer.Tokenizer
	metrics     *metrics.Collector
	logger      *logrus.Logger
}

// New builds the chain. The generator may be nil only for retrieval-only
// callers; Query requires it. The parent store may be nil, disabling
// parent-child expansion.
func New(searcher strategy.Searcher, generator llm.Generator, store *strategy.ParentStore, logger *logrus.Logger) *Chain {
	if logger == nil {
		logger = logrus.New()
	}
	c := &Chain{
		searcher:   searcher,
		generator:  generator,
		agent:      strategy.NewAgent(searcher, generator, logger),
		hyde:       strategy.NewHyDE(searcher, generator, logger),
		multiQuery: strategy.NewMultiQuery(searcher, logger),
		planner:    strategy.NewPlanner(searcher, generator, logger),
		crag:       strategy.NewCRAG(searcher, generator, logger),
		store:      store,
		logger:     logger,
	}
	if store != nil {
		c.parentChild = strategy.NewParentChild(searcher, store, logger)
	}
	tok, err := tokenizer.New()
	if err != nil {
		logger.WithError(err).Warn("Tokenizer unavailable, stopword gate disabled")
	} else {
		c.tokens = tok
	}
	return c
}

// WithMetrics attaches a collector. A nil collector leaves the chain
// unobserved.
func (c *Chain) WithMetrics(m *metrics.Collector) *Chain {
	c.metrics = m
	return c
}

// answerable reports whether the question carries any searchable content.
// Empty, whitespace-only, and stopword-only questions are refused before
// retrieval or generation.
func (c *Chain) answerable(question string) bool {
	if strings.TrimSpace(question) == "" {
		return false
	}
	if c.tokens == nil {
		return true
	}
	return len(c.tokens.ContentTokens(question)) > 0
}

// Query answers a question end to end.
func (c *Chain) Query(ctx context.Context, question string, opts *Options) (*models.RAGResponse, error) {
	o := opts.normalized()
	if c.generator == nil {
		return nil, fmt.Errorf("chain: no generator configured")
	}
	if !c.answerable(question) {
		return refusalResponse(refusalNoResults, models.ConfidenceScore{Label: models.ConfidenceTidakAda}, models.RiskLow,
			[]string{"Pertanyaan kosong atau hanya berisi kata umum."}), nil
	}

	results, err := c.retrieve(ctx, question, o)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return refusalResponse(refusalNoResults, models.ConfidenceScore{Label: models.ConfidenceTidakAda}, models.RiskLow, nil), nil
	}
	if len(results) > o.K {
		results = results[:o.K]
	}

	contextText := BuildContext(results)
	citations := BuildCitations(results)
	sources := Sources(results)

	confidence := ScoreConfidence(results)
	if confidence.Score < confidenceGate {
		resp := refusalResponse(refusalLowConf, confidence, models.RiskRefused,
			[]string{"Keyakinan pengambilan terlalu rendah untuk menghasilkan jawaban."})
		resp.Citations = citations
		resp.Sources = sources
		return resp, nil
	}

	answer, err := c.generate(ctx, question, contextText, o.Mode)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	cleaned, cited, fromFooter := ExtractCitedSources(answer)
	c.logger.WithFields(logrus.Fields{
		"cited":       len(cited),
		"from_footer": fromFooter,
	}).Debug("Citations extracted")

	validation := ValidateCitations(cited, len(citations))
	if o.SkipGrounding {
		validation.GroundingScore = nil
	} else {
		score, ungrounded := VerifyGrounding(ctx, c.generator, cleaned, citations, c.logger)
		validation.GroundingScore = score
		validation.UngroundedClaims = ungrounded
	}

	return &models.RAGResponse{
		Answer:           cleaned,
		Citations:        citations,
		Sources:          sources,
		Confidence:       confidence.Label,
		ConfidenceDetail: confidence,
		Context:          contextText,
		Validation:       validation,
	}, nil
}

// QueryWithHistory prepends a compressed history of the last turns to the
// question and delegates to Query.
func (c *Chain) QueryWithHistory(ctx context.Context, question string, history []models.ConversationTurn, opts *Options) (*models.RAGResponse, error) {
	if !c.answerable(question) {
		return refusalResponse(refusalNoResults, models.ConfidenceScore{Label: models.ConfidenceTidakAda}, models.RiskLow,
			[]string{"Pertanyaan kosong atau hanya berisi kata umum."}), nil
	}
	if len(history) == 0 {
		return c.Query(ctx, question, opts)
	}
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}

	var b strings.Builder
	b.WriteString("Konteks percakapan sebelumnya:\n")
	for _, turn := range history {
		answer := turn.Answer
		if len(answer) > historyAnswerLen {
			answer = truncate(answer, historyAnswerLen) + "..."
		}
		fmt.Fprintf(&b, "T: %s\nJ: %s\n", turn.Question, answer)
	}
	fmt.Fprintf(&b, "\nPertanyaan saat ini: %s", question)

	return c.Query(ctx, b.String(), opts)
}

// retrieve runs the strategy cascade and the optional post-retrieval
// stages. An explicit filter bypasses the cascade.
func (c *Chain) retrieve(ctx context.Context, question string, o Options) ([]models.SearchResult, error) {
	searchOpts := retriever.DefaultSearchOptions()
	if o.Search != nil {
		opts := *o.Search
		searchOpts = &opts
	}

	var (
		results []models.SearchResult
		err     error
		chosen  string
	)
	switch {
	case !o.Filter.IsZero():
		searchOpts.Filter = o.Filter
		chosen = "filtered"
		results, err = c.searcher.HybridSearch(ctx, question, o.K, searchOpts)
	case o.UseAgentic:
		chosen = "agentic"
		results, err = c.agent.Search(ctx, question, o.K, searchOpts)
	case o.UseDecomposition && strategy.IsCompound(question):
		chosen = "decompose"
		results, err = c.planner.Search(ctx, question, o.K, searchOpts)
	case o.UseMultiQuery:
		chosen = "multi_query"
		results, err = c.multiQuery.Search(ctx, question, o.K, searchOpts)
	case o.UseHyDE:
		chosen = "hyde"
		results, err = c.hyde.Search(ctx, question, o.K, searchOpts)
	default:
		chosen = "direct"
		results, err = c.searcher.HybridSearch(ctx, question, o.K, searchOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"strategy": chosen,
		"results":  len(results),
	}).Debug("Retrieval complete")

	if o.UseCRAG {
		results, err = c.crag.Correct(ctx, question, results, o.K, searchOpts)
		if err != nil {
			return nil, err
		}
	}
	if o.UseParentChild && c.parentChild != nil && c.store.Len() > 0 {
		results = c.parentChild.Widen(results, o.K)
	}
	return results, nil
}

func (c *Chain) generate(ctx context.Context, question, contextText string, mode Mode) (string, error) {
	qtype := DetectQuestionType(question)
	start := time.Now()
	answer, err := c.generator.Generate(ctx, SystemPrompt(mode, qtype), UserPrompt(question, contextText))
	if c.metrics != nil {
		c.metrics.GenerationDuration.WithLabelValues(c.generator.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.GenerationErrors.WithLabelValues(c.generator.Name()).Inc()
		}
	}
	return answer, err
}

func refusalResponse(message string, confidence models.ConfidenceScore, risk string, warnings []string) *models.RAGResponse {
	return &models.RAGResponse{
		Answer:           message,
		Citations:        []models.Citation{},
		Sources:          []string{},
		Confidence:       confidence.Label,
		ConfidenceDetail: confidence,
		Validation: models.ValidationResult{
			IsValid:           true,
			HallucinationRisk: risk,
			Warnings:          warnings,
		},
	}
}
