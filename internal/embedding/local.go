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
	localDimension  = 384
	localMaxRetries = 3
	localMaxChars   = 2000
)

// LocalEmbedder calls a self-hosted sentence-transformer service. The
// service exposes /embed with a plain inputs array and no input typing.
type LocalEmbedder struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewLocalEmbedder builds the self-hosted back-end from config.
func NewLocalEmbedder(cfg Config, logger *logrus.Logger) *LocalEmbedder {
	baseURL := cfg.LocalURL
	if baseURL == "" {
		baseURL = DefaultConfig().LocalURL
	}
	return &LocalEmbedder{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (e *LocalEmbedder) Name() string   { return "local/sentence-transformer" }
func (e *LocalEmbedder) Dimension() int { return localDimension }

// EmbedQuery embeds a single query.
func (e *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

// EmbedDocuments embeds passages in batches of at most 100.
func (e *LocalEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, batch := range batches(texts) {
		vecs, err := e.embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *LocalEmbedder) embed(ctx context.Context, texts []string) ([][]float64, error) {
	inputs := make([]string, len(texts))
	for i, t := range texts {
		if len(t) > localMaxChars {
			t = t[:localMaxChars]
		}
		inputs[i] = t
	}

	payload, err := json.Marshal(map[string]interface{}{"inputs": inputs})
	if err != nil {
		return nil, err
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := doWithBackoff(ctx, e.httpClient, build, localMaxRetries, e.logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var vecs [][]float64
	if err := json.NewDecoder(resp.Body).Decode(&vecs); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}
