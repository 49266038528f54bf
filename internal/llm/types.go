// Package llm provides text generation back-ends behind a small capability
// interface, with retry, token refresh, and a circuit-broken fallback chain.
package llm

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when a provider rejects credentials even after
// a refresh.
var ErrUnauthorized = errors.New("llm: unauthorized")

// Delta is one streamed generation fragment. A non-nil Err terminates the
// stream.
type Delta struct {
	Text string
	Err  error
}

// Generator produces text from a prompt. The system message sets provider
// instructions; an empty system message is omitted from the request.
type Generator interface {
	// Name returns the provider name.
	Name() string
	// Generate returns the full completion for prompt.
	Generate(ctx context.Context, system, prompt string) (string, error)
	// GenerateStream returns completion fragments as they arrive. The
	// channel is closed when the stream ends.
	GenerateStream(ctx context.Context, system, prompt string) (<-chan Delta, error)
}
