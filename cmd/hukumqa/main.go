// Command hukumqa answers questions about Indonesian legislation from the
// terminal. It wires the full retrieval and generation pipeline against a
// populated Qdrant collection.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hukumqa/hukumqa/internal/chain"
	"github.com/hukumqa/hukumqa/internal/config"
	"github.com/hukumqa/hukumqa/internal/embedding"
	"github.com/hukumqa/hukumqa/internal/kg"
	"github.com/hukumqa/hukumqa/internal/llm"
	"github.com/hukumqa/hukumqa/internal/metrics"
	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/rerank"
	"github.com/hukumqa/hukumqa/internal/retriever"
	"github.com/hukumqa/hukumqa/internal/sparse"
	"github.com/hukumqa/hukumqa/internal/strategy"
	"github.com/hukumqa/hukumqa/internal/synonyms"
	"github.com/hukumqa/hukumqa/internal/tokenizer"
	"github.com/hukumqa/hukumqa/internal/vectordb/qdrant"
)

var rootCmd = &cobra.Command{
	Use:   "hukumqa",
	Short: "Question answering over Indonesian legal regulations",
	Long: `hukumqa retrieves relevant regulation passages with hybrid dense and
keyword search, boosts them with a knowledge graph of regulation relations,
and generates cited answers with an LLM.`,
	SilenceUsage: true,
}

var (
	flagTopK     int
	flagStrategy string
	flagCRAG     bool
	flagParents  bool
	flagVerbatim bool
)

func init() {
	for _, cmd := range []*cobra.Command{askCmd, streamCmd} {
		cmd.Flags().IntVarP(&flagTopK, "top-k", "k", 0, "number of context passages")
		cmd.Flags().StringVar(&flagStrategy, "strategy", "agentic", "retrieval strategy: agentic, decompose, multi-query, hyde, direct")
		cmd.Flags().BoolVar(&flagCRAG, "crag", false, "apply corrective retrieval")
		cmd.Flags().BoolVar(&flagParents, "parents", false, "widen chunks to their parent articles")
		cmd.Flags().BoolVar(&flagVerbatim, "verbatim", false, "answer with verbatim quotations only")
	}
	rootCmd.AddCommand(askCmd, streamCmd, kgCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// engine bundles the wired pipeline for the commands.
type engine struct {
	chain   *chain.Chain
	graph   *kg.Graph
	config  *config.Config
	logger  *logrus.Logger
	metrics *metrics.Collector
}

func buildEngine(ctx context.Context) (*engine, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(cfg.ParseLogLevel())

	client, err := qdrant.NewClient(&qdrant.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		VectorSize: cfg.Qdrant.VectorSize,
		Timeout:    cfg.Qdrant.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewFromConfig(embedding.Config{
		JinaAPIKey:    cfg.Embedding.JinaAPIKey,
		JinaModel:     cfg.Embedding.JinaModel,
		JinaBaseURL:   cfg.Embedding.JinaBaseURL,
		NvidiaAPIKey:  cfg.Embedding.NvidiaAPIKey,
		NvidiaModel:   cfg.Embedding.NvidiaModel,
		NvidiaBaseURL: cfg.Embedding.NvidiaURL,
		LocalURL:      cfg.Embedding.LocalURL,
		Timeout:       cfg.Embedding.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	var reranker retriever.Reranker
	if cfg.Reranker.URL != "" {
		reranker = rerank.NewHTTPReranker(rerank.Config{
			URL:     cfg.Reranker.URL,
			APIKey:  cfg.Reranker.APIKey,
			Model:   cfg.Reranker.Model,
			Timeout: cfg.Reranker.Timeout,
		}, logger)
	}

	var graph *kg.Graph
	var graphIndex retriever.KnowledgeGraph
	if g, err := kg.Load(cfg.Graph.Path, logger); err != nil {
		logger.WithError(err).Warn("Knowledge graph unavailable, boosting disabled")
	} else {
		graph = g
		graphIndex = retriever.NewGraphAdapter(g)
	}

	tok, err := tokenizer.New()
	if err != nil {
		return nil, err
	}
	expander, err := synonyms.NewExpander()
	if err != nil {
		return nil, err
	}

	logger.WithField("collection", cfg.Qdrant.Collection).Info("Loading corpus")
	points, err := client.ScrollAll(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	chunks := make([]models.Chunk, 0, len(points))
	store := strategy.NewParentStore()
	for _, p := range points {
		chunk := retriever.ChunkFromPayload(p.ID, p.Payload)
		chunks = append(chunks, chunk)
		store.Add(chunk.Metadata.ParentCitationID, chunk.Text)
	}
	index := sparse.Build(tok, chunks, logger)
	logger.WithFields(logrus.Fields{
		"chunks":  index.Size(),
		"parents": store.Len(),
	}).Info("Corpus indexed")

	rcfg := retriever.DefaultConfig()
	rcfg.KGBoost = cfg.Graph.BoostFactor
	rcfg.KGBudget = cfg.Graph.BoostBudget
	dense := retriever.NewQdrantIndex(client, embedder, logger)
	searcher := retriever.New(dense, index, expander, reranker, graphIndex, rcfg, logger)

	generator, err := buildGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(nil)
		searcher.WithMetrics(collector)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", collector.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.WithError(err).Warn("Metrics endpoint stopped")
			}
		}()
	}

	qa := chain.New(searcher, generator, store, logger)
	if collector != nil {
		qa.WithMetrics(collector)
	}

	return &engine{
		chain:   qa,
		graph:   graph,
		config:  cfg,
		logger:  logger,
		metrics: collector,
	}, nil
}

// observe records answer quality metrics when the collector is enabled.
func (e *engine) observe(strategyName string, resp *models.RAGResponse) {
	if e.metrics == nil || resp == nil {
		return
	}
	e.metrics.StrategyCount.WithLabelValues(strategyName).Inc()
	e.metrics.ConfidenceScore.Observe(resp.ConfidenceDetail.Score)
	e.metrics.CitationCover.Observe(resp.Validation.CitationCoverage)
	switch resp.Validation.HallucinationRisk {
	case models.RiskRefused:
		e.metrics.Refusals.WithLabelValues("low_confidence").Inc()
	default:
		if resp.Confidence == models.ConfidenceTidakAda {
			e.metrics.Refusals.WithLabelValues("no_results").Inc()
		}
	}
}

func buildGenerator(cfg *config.Config, logger *logrus.Logger) (llm.Generator, error) {
	providers := []llm.Generator{newProvider(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, cfg, logger)}
	if cfg.LLM.FallbackProvider != "" {
		providers = append(providers, newProvider(cfg.LLM.FallbackProvider, cfg.LLM.FallbackAPIKey, cfg.LLM.FallbackModel, cfg.LLM.FallbackBaseURL, cfg, logger))
	}
	if len(providers) == 1 {
		return providers[0], nil
	}
	return llm.NewFallbackGenerator(providers, logger)
}

func newProvider(name, apiKey, model, baseURL string, cfg *config.Config, logger *logrus.Logger) llm.Generator {
	tokens := llm.StaticToken(apiKey)
	switch name {
	case "gemini":
		gc := llm.DefaultGeminiConfig()
		if model != "" {
			gc.Model = model
		}
		if baseURL != "" {
			gc.BaseURL = baseURL
		}
		gc.Temperature = cfg.LLM.Temperature
		gc.MaxTokens = cfg.LLM.MaxTokens
		gc.Timeout = cfg.LLM.Timeout
		return llm.NewGeminiGenerator(gc, tokens, logger)
	default:
		oc := llm.DefaultOpenAIConfig()
		if model != "" {
			oc.Model = model
		}
		if baseURL != "" {
			oc.BaseURL = baseURL
		}
		oc.Temperature = cfg.LLM.Temperature
		oc.MaxTokens = cfg.LLM.MaxTokens
		oc.Timeout = cfg.LLM.Timeout
		return llm.NewOpenAIGenerator(oc, tokens, logger)
	}
}

func (e *engine) queryOptions() *chain.Options {
	opts := &chain.Options{
		K:              flagTopK,
		UseCRAG:        flagCRAG,
		UseParentChild: flagParents,
	}
	if opts.K <= 0 {
		opts.K = e.config.Retrieval.TopK
	}
	search := retriever.DefaultSearchOptions()
	search.DenseWeight = e.config.Retrieval.DenseWeight
	search.MinScore = e.config.Retrieval.MinScore
	opts.Search = search
	if flagVerbatim {
		opts.Mode = chain.ModeVerbatim
	}
	switch flagStrategy {
	case "agentic":
		opts.UseAgentic = true
	case "decompose":
		opts.UseDecomposition = true
	case "multi-query":
		opts.UseMultiQuery = true
	case "hyde":
		opts.UseHyDE = true
	}
	return opts
}
