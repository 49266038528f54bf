package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	jinaDimension  = 1024
	jinaMaxRetries = 10
	// Inputs beyond the model's context are cut client-side.
	jinaMaxChars = 8000
)

// JinaEmbedder calls a hosted embedding API with task-typed inputs.
type JinaEmbedder struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewJinaEmbedder builds the Jina-style back-end from config.
func NewJinaEmbedder(cfg Config, logger *logrus.Logger) *JinaEmbedder {
	def := DefaultConfig()
	model := cfg.JinaModel
	if model == "" {
		model = def.JinaModel
	}
	baseURL := cfg.JinaBaseURL
	if baseURL == "" {
		baseURL = def.JinaBaseURL
	}
	return &JinaEmbedder{
		apiKey:     cfg.JinaAPIKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (e *JinaEmbedder) Name() string   { return "jina/" + e.model }
func (e *JinaEmbedder) Dimension() int { return jinaDimension }

// EmbedQuery embeds a single query.
func (e *JinaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.embed(ctx, []string{text}, "retrieval.query")
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

// EmbedDocuments embeds passages in batches of at most 100.
func (e *JinaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, batch := range batches(texts) {
		vecs, err := e.embed(ctx, batch, "retrieval.passage")
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *JinaEmbedder) embed(ctx context.Context, texts []string, task string) ([][]float64, error) {
	inputs := make([]string, len(texts))
	for i, t := range texts {
		if len(t) > jinaMaxChars {
			t = t[:jinaMaxChars]
		}
		inputs[i] = t
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model": e.model,
		"task":  task,
		"input": inputs,
	})
	if err != nil {
		return nil, err
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
		return req, nil
	}

	resp, err := doWithBackoff(ctx, e.httpClient, build, jinaMaxRetries, e.logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	vecs := make([][]float64, len(result.Data))
	for i, d := range result.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}
