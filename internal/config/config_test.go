package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "http://localhost:6333", cfg.Qdrant.URL)
	assert.Equal(t, "peraturan", cfg.Qdrant.Collection)
	assert.Equal(t, 1024, cfg.Qdrant.VectorSize)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.5, cfg.Retrieval.DenseWeight, 1e-9)
	assert.InDelta(t, 1.15, cfg.Graph.BoostFactor, 1e-9)
	assert.Equal(t, 200*time.Millisecond, cfg.Graph.BoostBudget)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("RETRIEVAL_TOP_K", "10")
	t.Setenv("RETRIEVAL_DENSE_WEIGHT", "0.7")
	t.Setenv("LLM_TIMEOUT", "90s")
	t.Setenv("METRICS_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "http://qdrant:6333", cfg.Qdrant.URL)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.7, cfg.Retrieval.DenseWeight, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "banyak")
	t.Setenv("LLM_TIMEOUT", "nanti")

	cfg := Load()

	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
}

func TestValidate(t *testing.T) {
	t.Setenv("JINA_API_KEY", "jina-test")
	cfg := Load()
	require.NoError(t, cfg.Validate())

	cfg.Qdrant.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Embedding.JinaAPIKey = ""
	cfg.Embedding.NvidiaAPIKey = ""
	cfg.Embedding.LocalURL = ""
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Retrieval.DenseWeight = 1.5
	assert.Error(t, cfg.Validate())
}

func TestParseLogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	assert.Equal(t, logrus.DebugLevel, cfg.ParseLogLevel())

	cfg.LogLevel = "sangat-detail"
	assert.Equal(t, logrus.InfoLevel, cfg.ParseLogLevel())
}
