package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/llm"
	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/retriever"
)

// MaxIterations bounds the agent loop.
const MaxIterations = 3

// Strategy decisions.
const (
	StrategyDirect      = "direct"
	StrategyHyDE        = "hyde"
	StrategyDecompose   = "decompose"
	StrategyMultiQuery  = "multi_query"
	StrategyRefineQuery = "refine_query"
)

// Iteration score thresholds over normalized averages.
const (
	refineThreshold     = 0.3
	multiQueryThreshold = 0.5
	goodEnoughThreshold = 0.5
	longQuestionWords   = 15
)

var definitionPhrases = []string{"apa itu", "definisi", "pengertian"}

const refinePrompt = `Perbaiki pertanyaan hukum berikut agar lebih spesifik dan mudah dicocokkan dengan teks peraturan perundang-undangan Indonesia. Pertahankan maksud aslinya. Jawab hanya dengan pertanyaan hasil perbaikan.

Pertanyaan: %s`

// AgentStep records one iteration of the loop for audit logging.
type AgentStep struct {
	Iteration int     `json:"iteration"`
	Strategy  string  `json:"strategy"`
	Query     string  `json:"query"`
	Results   int     `json:"results"`
	AvgScore  float64 `json:"avg_score"`
}

// Agent is the rule-based orchestrator. Per iteration it picks one strategy
// from the signal of the previous iteration, executes it, and exits early
// once the retrieval looks good enough.
type Agent struct {
	searcher   Searcher
	hyde       *HyDE
	multiQuery *MultiQuery
	planner    *Planner
	generator  llm.Generator
	logger     *logrus.Logger
}

// NewAgent builds the orchestrator. The generator may be nil; LLM-dependent
// strategies then degrade to direct retrieval.
func NewAgent(searcher Searcher, generator llm.Generator, logger *logrus.Logger) *Agent {
	if logger == nil {
		logger = logrus.New()
	}
	return &Agent{
		searcher:   searcher,
		hyde:       NewHyDE(searcher, generator, logger),
		multiQuery: NewMultiQuery(searcher, logger),
		planner:    NewPlanner(searcher, generator, logger),
		generator:  generator,
		logger:     logger,
	}
}

// SelectStrategy applies the decision rules. On the first iteration the
// question's shape decides; afterwards the previous scores decide.
func SelectStrategy(question string, previous []models.SearchResult) string {
	if previous != nil {
		avg := models.NormalizedAverage(previous)
		if avg < refineThreshold {
			return StrategyRefineQuery
		}
		if avg < multiQueryThreshold {
			return StrategyMultiQuery
		}
		return StrategyDirect
	}

	if len(strings.Fields(question)) > longQuestionWords || IsCompound(question) {
		return StrategyDecompose
	}
	lower := strings.ToLower(question)
	for _, phrase := range definitionPhrases {
		if strings.Contains(lower, phrase) {
			return StrategyHyDE
		}
	}
	return StrategyDirect
}

// Search runs the iteration loop and returns the last results.
func (a *Agent) Search(ctx context.Context, question string, k int, opts *retriever.SearchOptions) ([]models.SearchResult, error) {
	results, _, err := a.SearchWithTrace(ctx, question, k, opts)
	return results, err
}

// SearchWithTrace runs the loop and also returns the per-iteration audit
// trail.
func (a *Agent) SearchWithTrace(ctx context.Context, question string, k int, opts *retriever.SearchOptions) ([]models.SearchResult, []AgentStep, error) {
	var (
		results  []models.SearchResult
		previous []models.SearchResult
		steps    []AgentStep
		query    = question
	)

	for i := 0; i < MaxIterations; i++ {
		strategy := SelectStrategy(question, previous)

		var err error
		results, query, err = a.execute(ctx, strategy, query, k, opts)
		if err != nil {
			if previous != nil {
				a.logger.WithError(err).Warn("Iteration failed, keeping previous results")
				return previous, steps, nil
			}
			return nil, steps, err
		}

		avg := models.NormalizedAverage(results)
		steps = append(steps, AgentStep{
			Iteration: i + 1,
			Strategy:  strategy,
			Query:     query,
			Results:   len(results),
			AvgScore:  avg,
		})
		a.logger.WithFields(logrus.Fields{
			"iteration": i + 1,
			"strategy":  strategy,
			"results":   len(results),
			"avg_score": avg,
		}).Debug("Agent iteration complete")

		if avg >= goodEnoughThreshold {
			break
		}
		previous = results
	}

	return results, steps, nil
}

// execute runs one strategy. LLM-dependent strategies that are unavailable
// or fail fall back to direct retrieval. Returns the results and the query
// to carry into the next iteration.
func (a *Agent) execute(ctx context.Context, strategy, query string, k int, opts *retriever.SearchOptions) ([]models.SearchResult, string, error) {
	switch strategy {
	case StrategyHyDE:
		results, err := a.hyde.Search(ctx, query, k, opts)
		return results, query, err
	case StrategyMultiQuery:
		results, err := a.multiQuery.Search(ctx, query, k, opts)
		if err != nil {
			a.logger.WithError(err).Warn("Multi-query failed, using direct retrieval")
			results, err = a.searcher.HybridSearch(ctx, query, k, opts)
		}
		return results, query, err
	case StrategyDecompose:
		results, err := a.planner.Search(ctx, query, k, opts)
		return results, query, err
	case StrategyRefineQuery:
		refined := a.refine(ctx, query)
		results, err := a.searcher.HybridSearch(ctx, refined, k, opts)
		return results, refined, err
	default:
		results, err := a.searcher.HybridSearch(ctx, query, k, opts)
		return results, query, err
	}
}

// refine rewrites the query via the LLM. Unavailable or failing generation
// keeps the query unchanged.
func (a *Agent) refine(ctx context.Context, query string) string {
	if a.generator == nil {
		return query
	}
	refined, err := a.generator.Generate(ctx, "", fmt.Sprintf(refinePrompt, query))
	if err != nil || strings.TrimSpace(refined) == "" {
		a.logger.WithError(err).Warn("Query refinement failed, keeping query")
		return query
	}
	return strings.TrimSpace(refined)
}
