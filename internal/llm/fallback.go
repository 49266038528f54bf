package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/sirupsen/logrus"
)

// FallbackGenerator tries providers in order, each behind its own circuit
// breaker. A provider whose breaker is open is skipped without being called.
type FallbackGenerator struct {
	providers []Generator
	breakers  []*gobreaker.CircuitBreaker
	logger    *logrus.Logger
}

// NewFallbackGenerator wraps providers in a fallback chain.
func NewFallbackGenerator(providers []Generator, logger *logrus.Logger) (*FallbackGenerator, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	breakers := make([]*gobreaker.CircuitBreaker, len(providers))
	for i, p := range providers {
		name := p.Name()
		breakers[i] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"provider": name,
					"from":     from.String(),
					"to":       to.String(),
				}).Warn("Provider circuit state changed")
			},
		})
	}
	return &FallbackGenerator{providers: providers, breakers: breakers, logger: logger}, nil
}

func (f *FallbackGenerator) Name() string {
	return "fallback/" + f.providers[0].Name()
}

// Generate tries each provider until one succeeds.
func (f *FallbackGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error
	for i, p := range f.providers {
		result, err := f.breakers[i].Execute(func() (interface{}, error) {
			return p.Generate(ctx, system, prompt)
		})
		if err == nil {
			return result.(string), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.logger.WithField("provider", p.Name()).WithError(err).Warn("Provider failed, trying next")
	}
	return "", fmt.Errorf("all providers failed: %w", lastErr)
}

// GenerateStream tries each provider until one opens a stream. Failures
// after the stream opens are not retried on another provider.
func (f *FallbackGenerator) GenerateStream(ctx context.Context, system, prompt string) (<-chan Delta, error) {
	var lastErr error
	for i, p := range f.providers {
		result, err := f.breakers[i].Execute(func() (interface{}, error) {
			return p.GenerateStream(ctx, system, prompt)
		})
		if err == nil {
			return result.(<-chan Delta), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.WithField("provider", p.Name()).WithError(err).Warn("Provider failed to open stream, trying next")
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}
