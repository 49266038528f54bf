package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "syarat phk", req.Query)
		require.Len(t, req.Documents, 3)

		// Scores arrive sorted by relevance, not input order.
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"index": 2, "relevance_score": 8.1},
				{"index": 0, "relevance_score": -1.5},
				{"index": 1, "relevance_score": 3.0},
			},
		})
	}))
	defer srv.Close()

	r := NewHTTPReranker(Config{URL: srv.URL, Timeout: 5 * time.Second}, nil)
	scores, err := r.Score(context.Background(), "syarat phk", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.5, 3.0, 8.1}, scores)
}

func TestScoreEmptyInput(t *testing.T) {
	r := NewHTTPReranker(Config{URL: "http://unused"}, nil)
	scores, err := r.Score(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
}

func TestScoreCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{{"index": 0, "relevance_score": 1.0}},
		})
	}))
	defer srv.Close()

	r := NewHTTPReranker(Config{URL: srv.URL, Timeout: 5 * time.Second}, nil)
	_, err := r.Score(context.Background(), "q", []string{"a", "b"})
	assert.Error(t, err)
}

func TestScoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPReranker(Config{URL: srv.URL, Timeout: 5 * time.Second}, nil)
	_, err := r.Score(context.Background(), "q", []string{"a"})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.5, Normalize(0))
	assert.Equal(t, 1.0, Normalize(10))
	assert.Equal(t, 0.0, Normalize(-10))
	assert.Equal(t, 1.0, Normalize(25))  // clamped
	assert.Equal(t, 0.0, Normalize(-25)) // clamped
	assert.InDelta(t, 0.905, Normalize(8.1), 0.001)
}
