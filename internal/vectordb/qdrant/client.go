package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client talks to one Qdrant instance over HTTP.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient builds a client from config.
func NewClient(config *Config, logger *logrus.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// Collection returns the configured collection name.
func (c *Client) Collection() string {
	return c.config.Collection
}

// HealthCheck probes the instance root endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL, nil)
	if err != nil {
		return err
	}
	if c.config.APIKey != "" {
		req.Header.Set("api-key", c.config.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.URL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("api-key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// EnsureCollection creates the configured collection when it does not exist
// yet, with cosine distance and serving HNSW parameters.
func (c *Client) EnsureCollection(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/collections/"+c.config.Collection, nil); err == nil {
		return nil
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     c.config.VectorSize,
			"distance": "Cosine",
		},
		"hnsw_config": map[string]interface{}{
			"m":            16,
			"ef_construct": 100,
		},
	}
	if _, err := c.doRequest(ctx, http.MethodPut, "/collections/"+c.config.Collection, body); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	c.logger.WithField("collection", c.config.Collection).Info("Collection created")
	return nil
}

// BeginBulkIngest disables HNSW indexing so a large upsert avoids building
// the graph incrementally. FinishBulkIngest restores serving parameters.
func (c *Client) BeginBulkIngest(ctx context.Context) error {
	body := map[string]interface{}{
		"hnsw_config":       map[string]interface{}{"m": 0},
		"optimizers_config": map[string]interface{}{"indexing_threshold": 0},
	}
	_, err := c.doRequest(ctx, http.MethodPatch, "/collections/"+c.config.Collection, body)
	if err != nil {
		return fmt.Errorf("failed to enter bulk ingest mode: %w", err)
	}
	return nil
}

// FinishBulkIngest restores the serving HNSW parameters after a bulk load.
func (c *Client) FinishBulkIngest(ctx context.Context) error {
	body := map[string]interface{}{
		"hnsw_config":       map[string]interface{}{"m": 16, "ef_construct": 100},
		"optimizers_config": map[string]interface{}{"indexing_threshold": 20000},
	}
	_, err := c.doRequest(ctx, http.MethodPatch, "/collections/"+c.config.Collection, body)
	if err != nil {
		return fmt.Errorf("failed to leave bulk ingest mode: %w", err)
	}
	return nil
}

// Point is one stored vector with its chunk payload.
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float64              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ScoredPoint is one search hit. Score is provider-defined; higher is more
// similar.
type ScoredPoint struct {
	ID      string                 `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// UpsertPoints writes points, assigning stable UUIDs to points without ids.
func (c *Client) UpsertPoints(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	for i := range points {
		if points[i].ID == "" {
			points[i].ID = uuid.New().String()
		}
	}
	body := map[string]interface{}{"points": points}
	if _, err := c.doRequest(ctx, http.MethodPut, "/collections/"+c.config.Collection+"/points?wait=true", body); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"collection": c.config.Collection,
		"count":      len(points),
	}).Debug("Points upserted")
	return nil
}

// QueryPoints runs dense nearest-neighbor search, optionally constrained by
// a filter built with BuildFilter.
func (c *Client) QueryPoints(ctx context.Context, vector []float64, limit int, filter map[string]interface{}) ([]ScoredPoint, error) {
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil {
		body["filter"] = filter
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/collections/"+c.config.Collection+"/points/search", body)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var response struct {
		Result []ScoredPoint `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return response.Result, nil
}

// Scroll pages through points. Pass the returned offset to continue; a nil
// offset means the scroll is exhausted.
func (c *Client) Scroll(ctx context.Context, limit int, offset *string, filter map[string]interface{}) ([]Point, *string, error) {
	body := map[string]interface{}{
		"limit":        limit,
		"with_payload": true,
	}
	if offset != nil {
		body["offset"] = *offset
	}
	if filter != nil {
		body["filter"] = filter
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/collections/"+c.config.Collection+"/points/scroll", body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	var response struct {
		Result struct {
			Points         []Point `json:"points"`
			NextPageOffset *string `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, nil, fmt.Errorf("failed to parse scroll response: %w", err)
	}
	return response.Result.Points, response.Result.NextPageOffset, nil
}

// ScrollAll drains the scroll into memory. Used once at startup to build the
// BM25 corpus and the parent chunk store.
func (c *Client) ScrollAll(ctx context.Context, batch int) ([]Point, error) {
	if batch <= 0 {
		batch = 256
	}
	var all []Point
	var offset *string
	for {
		points, next, err := c.Scroll(ctx, batch, offset, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, points...)
		if next == nil || len(points) == 0 {
			break
		}
		offset = next
	}
	c.logger.WithFields(logrus.Fields{
		"collection": c.config.Collection,
		"points":     len(all),
	}).Info("Collection scrolled")
	return all, nil
}

// DeleteByFilter removes every point matching the filter.
func (c *Client) DeleteByFilter(ctx context.Context, filter map[string]interface{}) error {
	if filter == nil {
		return fmt.Errorf("delete filter is required")
	}
	body := map[string]interface{}{"filter": filter}
	if _, err := c.doRequest(ctx, http.MethodPost, "/collections/"+c.config.Collection+"/points/delete?wait=true", body); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// CountPoints returns the exact number of points matching the filter.
func (c *Client) CountPoints(ctx context.Context, filter map[string]interface{}) (int64, error) {
	body := map[string]interface{}{"exact": true}
	if filter != nil {
		body["filter"] = filter
	}
	respBody, err := c.doRequest(ctx, http.MethodPost, "/collections/"+c.config.Collection+"/points/count", body)
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	var response struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return 0, fmt.Errorf("failed to parse count response: %w", err)
	}
	return response.Result.Count, nil
}
