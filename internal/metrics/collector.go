// Package metrics exposes Prometheus instrumentation for the retrieval and
// generation pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the pipeline metrics.
type Collector struct {
	// Retrieval metrics
	SearchDuration  *prometheus.HistogramVec
	SearchResults   *prometheus.HistogramVec
	StrategyCount   *prometheus.CounterVec
	FilterFallbacks prometheus.Counter
	KGBoostSkips    prometheus.Counter

	// Generation metrics
	GenerationDuration *prometheus.HistogramVec
	GenerationErrors   *prometheus.CounterVec
	Refusals           *prometheus.CounterVec

	// Quality metrics
	ConfidenceScore prometheus.Histogram
	CitationCover   prometheus.Histogram

	registry *prometheus.Registry
}

// NewCollector builds and registers the collector on a fresh registry.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hukumqa_search_duration_seconds",
				Help:    "Hybrid search duration in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"stage"},
		),
		SearchResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hukumqa_search_results",
				Help:    "Result count per search stage",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
			[]string{"stage"},
		),
		StrategyCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hukumqa_strategy_total",
				Help: "Retrieval strategy selections",
			},
			[]string{"strategy"},
		),
		FilterFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hukumqa_filter_fallbacks_total",
			Help: "Auto-filter fallbacks to unfiltered dense search",
		}),
		KGBoostSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hukumqa_kg_boost_skips_total",
			Help: "Knowledge graph boosts skipped on deadline or error",
		}),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hukumqa_generation_duration_seconds",
				Help:    "LLM generation duration in seconds",
				Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		GenerationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hukumqa_generation_errors_total",
				Help: "LLM generation failures",
			},
			[]string{"provider"},
		),
		Refusals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hukumqa_refusals_total",
				Help: "Refused answers by reason",
			},
			[]string{"reason"},
		),
		ConfidenceScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hukumqa_confidence_score",
			Help:    "Calibrated retrieval confidence per answered request",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		CitationCover: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hukumqa_citation_coverage",
			Help:    "Citation coverage of generated answers",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}

	registry.MustRegister(
		c.SearchDuration,
		c.SearchResults,
		c.StrategyCount,
		c.FilterFallbacks,
		c.KGBoostSkips,
		c.GenerationDuration,
		c.GenerationErrors,
		c.Refusals,
		c.ConfidenceScore,
		c.CitationCover,
	)
	c.registry = registry
	return c
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
