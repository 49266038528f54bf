// Package config loads the serving configuration from the environment, with
// optional .env file support.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Qdrant    QdrantConfig
	Embedding EmbeddingConfig
	Reranker  RerankerConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	Graph     GraphConfig
	Metrics   MetricsConfig
	LogLevel  string
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	VectorSize int
	Timeout    time.Duration
}

type EmbeddingConfig struct {
	JinaAPIKey   string
	JinaModel    string
	JinaBaseURL  string
	NvidiaAPIKey string
	NvidiaModel  string
	NvidiaURL    string
	LocalURL     string
	Timeout      time.Duration
}

type RerankerConfig struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type LLMConfig struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	FallbackProvider string
	FallbackAPIKey   string
	FallbackModel    string
	FallbackBaseURL  string
}

type RetrievalConfig struct {
	TopK        int
	DenseWeight float64
	MinScore    float64
}

type GraphConfig struct {
	Path        string
	BoostFactor float64
	BoostBudget time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	return &Config{
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "peraturan"),
			VectorSize: getIntEnv("QDRANT_VECTOR_SIZE", 1024),
			Timeout:    getDurationEnv("QDRANT_TIMEOUT", 30*time.Second),
		},
		Embedding: EmbeddingConfig{
			JinaAPIKey:   getEnv("JINA_API_KEY", ""),
			JinaModel:    getEnv("JINA_MODEL", "jina-embeddings-v3"),
			JinaBaseURL:  getEnv("JINA_BASE_URL", "https://api.jina.ai/v1"),
			NvidiaAPIKey: getEnv("NVIDIA_API_KEY", ""),
			NvidiaModel:  getEnv("NVIDIA_EMBED_MODEL", "nvidia/nv-embedqa-e5-v5"),
			NvidiaURL:    getEnv("NVIDIA_EMBED_URL", "https://integrate.api.nvidia.com/v1"),
			LocalURL:     getEnv("LOCAL_EMBED_URL", ""),
			Timeout:      getDurationEnv("EMBED_TIMEOUT", 30*time.Second),
		},
		Reranker: RerankerConfig{
			URL:     getEnv("RERANKER_URL", ""),
			APIKey:  getEnv("RERANKER_API_KEY", ""),
			Model:   getEnv("RERANKER_MODEL", "jina-reranker-v2-base-multilingual"),
			Timeout: getDurationEnv("RERANKER_TIMEOUT", 20*time.Second),
		},
		LLM: LLMConfig{
			Provider:         getEnv("LLM_PROVIDER", "openai"),
			APIKey:           getEnv("LLM_API_KEY", ""),
			Model:            getEnv("LLM_MODEL", "gpt-4o-mini"),
			BaseURL:          getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			Temperature:      getFloatEnv("LLM_TEMPERATURE", 0.1),
			MaxTokens:        getIntEnv("LLM_MAX_TOKENS", 2048),
			Timeout:          getDurationEnv("LLM_TIMEOUT", 60*time.Second),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			FallbackAPIKey:   getEnv("LLM_FALLBACK_API_KEY", ""),
			FallbackModel:    getEnv("LLM_FALLBACK_MODEL", "gemini-2.0-flash"),
			FallbackBaseURL:  getEnv("LLM_FALLBACK_BASE_URL", ""),
		},
		Retrieval: RetrievalConfig{
			TopK:        getIntEnv("RETRIEVAL_TOP_K", 5),
			DenseWeight: getFloatEnv("RETRIEVAL_DENSE_WEIGHT", 0.5),
			MinScore:    getFloatEnv("RETRIEVAL_MIN_SCORE", 0),
		},
		Graph: GraphConfig{
			Path:        getEnv("KG_PATH", "data/knowledge_graph.json"),
			BoostFactor: getFloatEnv("KG_BOOST_FACTOR", 1.15),
			BoostBudget: getDurationEnv("KG_BOOST_BUDGET", 200*time.Millisecond),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("METRICS_ENABLED", false),
			Addr:    getEnv("METRICS_ADDR", ":9090"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the settings a serving process cannot run without.
func (c *Config) Validate() error {
	if c.Qdrant.URL == "" {
		return fmt.Errorf("QDRANT_URL is required")
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("QDRANT_COLLECTION is required")
	}
	if c.Embedding.JinaAPIKey == "" && c.Embedding.NvidiaAPIKey == "" && c.Embedding.LocalURL == "" {
		return fmt.Errorf("no embedding provider configured: set JINA_API_KEY, NVIDIA_API_KEY, or LOCAL_EMBED_URL")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if c.Retrieval.DenseWeight < 0 || c.Retrieval.DenseWeight > 1 {
		return fmt.Errorf("RETRIEVAL_DENSE_WEIGHT must be in [0,1]")
	}
	return nil
}

// ParseLogLevel maps the configured level onto logrus, defaulting to info.
func (c *Config) ParseLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
