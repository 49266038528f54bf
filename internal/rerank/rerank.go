// Package rerank scores (query, document) pairs with a hosted cross-encoder.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Raw cross-encoder logits typically fall in this range; Normalize maps it
// onto [0,1].
const (
	rawMin = -10.0
	rawMax = 10.0
)

// Reranker scores candidate texts against a query.
type Reranker interface {
	// Score returns one raw relevance score per text, in input order.
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
	// Name returns the model name.
	Name() string
}

// Config configures the HTTP cross-encoder client.
type Config struct {
	URL     string        `json:"url"`
	APIKey  string        `json:"api_key,omitempty"`
	Model   string        `json:"model,omitempty"`
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns default settings.
func DefaultConfig() Config {
	return Config{
		URL:     "http://localhost:8081/rerank",
		Model:   "cross-encoder/mmarco-mMiniLMv2-L12-H384-v1",
		Timeout: 30 * time.Second,
	}
}

// HTTPReranker calls a rerank endpoint that accepts a query and a batch of
// texts and returns indexed scores.
type HTTPReranker struct {
	config     Config
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewHTTPReranker builds the client.
func NewHTTPReranker(cfg Config, logger *logrus.Logger) *HTTPReranker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &HTTPReranker{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (r *HTTPReranker) Name() string {
	return r.config.Model
}

// Score returns one raw score per text, in input order.
func (r *HTTPReranker) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model":     r.config.Model,
		"query":     query,
		"documents": texts,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank request failed: status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	if len(result.Results) != len(texts) {
		return nil, fmt.Errorf("expected %d scores, got %d", len(texts), len(result.Results))
	}

	scores := make([]float64, len(texts))
	for _, item := range result.Results {
		if item.Index < 0 || item.Index >= len(scores) {
			return nil, fmt.Errorf("rerank index %d out of range", item.Index)
		}
		scores[item.Index] = item.Score
	}
	return scores, nil
}

// Normalize maps a raw cross-encoder score onto [0,1], clamped.
func Normalize(raw float64) float64 {
	v := (raw - rawMin) / (rawMax - rawMin)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
