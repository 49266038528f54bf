// Package qdrant is a minimal HTTP client for the Qdrant REST API, covering
// the operations the retriever and ingestion collaborators use: filtered
// nearest-neighbor search, paginated scroll, upsert, and filter deletes.
package qdrant

import (
	"fmt"
	"time"
)

// Config holds connection settings for one Qdrant instance.
type Config struct {
	URL        string        `json:"url"`
	APIKey     string        `json:"api_key,omitempty"`
	Collection string        `json:"collection"`
	VectorSize int           `json:"vector_size"`
	Timeout    time.Duration `json:"timeout"`
}

// DefaultConfig returns default connection settings.
func DefaultConfig() *Config {
	return &Config{
		URL:        "http://localhost:6333",
		Collection: "peraturan",
		VectorSize: 1024,
		Timeout:    30 * time.Second,
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("vector_size must be positive")
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultConfig().Timeout
	}
	return nil
}
