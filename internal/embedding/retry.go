package embedding

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// doWithBackoff issues the request built by build up to maxRetries+1 times.
// 429 responses honor a Retry-After header when present; 5xx responses use
// exponential backoff. Other statuses return immediately.
func doWithBackoff(ctx context.Context, client *http.Client, build func() (*http.Request, error), maxRetries int, logger *logrus.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, lastErr)
			logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay,
			}).WithError(lastErr).Warn("Retrying embedding request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			lastErr = &httpError{status: resp.StatusCode, body: string(body), retryAfter: parseRetryAfter(resp)}
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return nil, fmt.Errorf("embedding request failed: %d %s", resp.StatusCode, string(body))
		}
	}
	return nil, fmt.Errorf("embedding request failed after %d retries: %w", maxRetries, lastErr)
}

type httpError struct {
	status     int
	body       string
	retryAfter time.Duration
}

func (e *httpError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

// backoffDelay is exponential with a 30s cap; a server-advertised
// Retry-After takes precedence.
func backoffDelay(attempt int, lastErr error) time.Duration {
	if he, ok := lastErr.(*httpError); ok && he.retryAfter > 0 {
		return he.retryAfter
	}
	delay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
