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
	nvidiaDimension  = 1024
	nvidiaMaxRetries = 3
)

// NvidiaEmbedder calls an OpenAI-compatible embedding API that discriminates
// query and passage inputs via input_type.
type NvidiaEmbedder struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewNvidiaEmbedder builds the NVIDIA-style back-end from config.
func NewNvidiaEmbedder(cfg Config, logger *logrus.Logger) *NvidiaEmbedder {
	def := DefaultConfig()
	model := cfg.NvidiaModel
	if model == "" {
		model = def.NvidiaModel
	}
	baseURL := cfg.NvidiaBaseURL
	if baseURL == "" {
		baseURL = def.NvidiaBaseURL
	}
	return &NvidiaEmbedder{
		apiKey:     cfg.NvidiaAPIKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (e *NvidiaEmbedder) Name() string   { return "nvidia/" + e.model }
func (e *NvidiaEmbedder) Dimension() int { return nvidiaDimension }

// EmbedQuery embeds a single query.
func (e *NvidiaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.embed(ctx, []string{text}, "query")
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

// EmbedDocuments embeds passages in batches of at most 100.
func (e *NvidiaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, batch := range batches(texts) {
		vecs, err := e.embed(ctx, batch, "passage")
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *NvidiaEmbedder) embed(ctx context.Context, texts []string, inputType string) ([][]float64, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"model":      e.model,
		"input":      texts,
		"input_type": inputType,
		// Oversized inputs are cut server-side instead of erroring.
		"truncate": "END",
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

	resp, err := doWithBackoff(ctx, e.httpClient, build, nvidiaMaxRetries, e.logger)
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
