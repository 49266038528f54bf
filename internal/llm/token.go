package llm

import (
	"context"
	"sync"
	"time"
)

// refreshMargin is how long before expiry a cached token is refreshed.
const refreshMargin = 5 * time.Minute

// TokenSource supplies bearer tokens for a provider.
type TokenSource interface {
	// Token returns a valid token, refreshing when needed.
	Token(ctx context.Context) (string, error)
	// Refresh forces a refresh and returns the new token.
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for plain API keys that never expire.
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error)   { return string(s), nil }
func (s StaticToken) Refresh(ctx context.Context) (string, error) { return string(s), nil }

// RefreshFunc obtains a fresh token and its expiry from the external
// authenticator.
type RefreshFunc func(ctx context.Context) (token string, expiry time.Time, err error)

// CachingTokenSource caches a token and refreshes it once it is within
// refreshMargin of expiry. Safe for concurrent use.
type CachingTokenSource struct {
	mu      sync.Mutex
	refresh RefreshFunc
	token   string
	expiry  time.Time
	now     func() time.Time
}

// NewCachingTokenSource wraps refresh in a caching source.
func NewCachingTokenSource(refresh RefreshFunc) *CachingTokenSource {
	return &CachingTokenSource{refresh: refresh, now: time.Now}
}

func (c *CachingTokenSource) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Add(refreshMargin).Before(c.expiry) {
		return c.token, nil
	}
	return c.refreshLocked(ctx)
}

func (c *CachingTokenSource) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *CachingTokenSource) refreshLocked(ctx context.Context) (string, error) {
	token, expiry, err := c.refresh(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiry = expiry
	return token, nil
}
