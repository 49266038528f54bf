// Package embedding provides dense embedding back-ends: two hosted HTTP
// services producing 1024-d vectors and a self-hosted sentence-transformer
// producing 384-d vectors.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// maxBatchSize is the hard cap on inputs per HTTP call.
const maxBatchSize = 100

// Embedder is the capability interface shared by all back-ends. Queries and
// passages embed differently; callers must pick the right operation.
type Embedder interface {
	// Name returns the back-end name.
	Name() string
	// Dimension returns the embedding dimensionality.
	Dimension() int
	// EmbedQuery embeds a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	// EmbedDocuments embeds document passages, batching internally.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
}

// Config selects and configures a back-end. When several providers carry
// credentials the precedence is Jina, then NVIDIA, then the local service.
type Config struct {
	JinaAPIKey   string        `json:"jina_api_key,omitempty"`
	JinaModel    string        `json:"jina_model,omitempty"`
	JinaBaseURL  string        `json:"jina_base_url,omitempty"`
	NvidiaAPIKey string        `json:"nvidia_api_key,omitempty"`
	NvidiaModel  string        `json:"nvidia_model,omitempty"`
	NvidiaBaseURL string       `json:"nvidia_base_url,omitempty"`
	LocalURL     string        `json:"local_url,omitempty"`
	Timeout      time.Duration `json:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		JinaModel:     "jina-embeddings-v3",
		JinaBaseURL:   "https://api.jina.ai/v1",
		NvidiaModel:   "nvidia/nv-embedqa-e5-v5",
		NvidiaBaseURL: "https://integrate.api.nvidia.com/v1",
		LocalURL:      "http://localhost:8080",
		Timeout:       60 * time.Second,
	}
}

// NewFromConfig builds the highest-precedence back-end the config enables.
func NewFromConfig(cfg Config, logger *logrus.Logger) (Embedder, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	switch {
	case cfg.JinaAPIKey != "":
		logger.WithField("provider", "jina").Info("Embedding provider selected")
		return NewJinaEmbedder(cfg, logger), nil
	case cfg.NvidiaAPIKey != "":
		logger.WithField("provider", "nvidia").Info("Embedding provider selected")
		return NewNvidiaEmbedder(cfg, logger), nil
	case cfg.LocalURL != "":
		logger.WithField("provider", "local").Info("Embedding provider selected")
		return NewLocalEmbedder(cfg, logger), nil
	default:
		return nil, fmt.Errorf("no embedding provider configured")
	}
}

// batches splits texts into slices of at most maxBatchSize.
func batches(texts []string) [][]string {
	var out [][]string
	for len(texts) > maxBatchSize {
		out = append(out, texts[:maxBatchSize])
		texts = texts[maxBatchSize:]
	}
	if len(texts) > 0 {
		out = append(out, texts)
	}
	return out
}
