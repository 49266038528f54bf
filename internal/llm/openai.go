package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// OpenAIConfig configures an OpenAI-compatible chat completions back-end.
type OpenAIConfig struct {
	BaseURL     string        `json:"base_url"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
	Retry       RetryConfig   `json:"-"`
}

// DefaultOpenAIConfig returns defaults for a hosted chat endpoint.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
		MaxTokens:   2048,
		Timeout:     120 * time.Second,
		Retry:       DefaultRetryConfig(),
	}
}

// OpenAIGenerator talks to any OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	config       OpenAIConfig
	tokens       TokenSource
	httpClient   *http.Client
	streamClient *http.Client
	logger       *logrus.Logger
}

// NewOpenAIGenerator builds the back-end. tokens supplies bearer
// credentials; use StaticToken for plain API keys.
func NewOpenAIGenerator(cfg OpenAIConfig, tokens TokenSource, logger *logrus.Logger) *OpenAIGenerator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOpenAIConfig().Timeout
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &OpenAIGenerator{
		config:     cfg,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		// Streams outlive any fixed timeout; cancellation comes from ctx.
		streamClient: &http.Client{},
		logger:       logger,
	}
}

func (g *OpenAIGenerator) Name() string {
	return "openai/" + g.config.Model
}

func (g *OpenAIGenerator) payload(system, prompt string, stream bool) ([]byte, error) {
	messages := make([]map[string]string, 0, 2)
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})
	return json.Marshal(map[string]interface{}{
		"model":       g.config.Model,
		"messages":    messages,
		"temperature": g.config.Temperature,
		"max_tokens":  g.config.MaxTokens,
		"stream":      stream,
	})
}

// do sends the request, refreshing credentials once on 401. A second 401
// surfaces as ErrUnauthorized.
func (g *OpenAIGenerator) do(ctx context.Context, client *http.Client, body []byte) (*http.Response, error) {
	refreshed := false
	for {
		token, err := g.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain token: %w", err)
		}

		build := func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+"/chat/completions", bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			return req, nil
		}

		resp, err := executeWithRetry(ctx, client, g.config.Retry, build)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			_ = resp.Body.Close()
			if refreshed {
				return nil, ErrUnauthorized
			}
			refreshed = true
			g.logger.Warn("Provider returned 401, refreshing credentials")
			if _, err := g.tokens.Refresh(ctx); err != nil {
				return nil, fmt.Errorf("credential refresh failed: %w", err)
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return nil, fmt.Errorf("provider error: status %d: %s", resp.StatusCode, string(respBody))
		}
		return resp, nil
	}
}

// Generate returns the full completion for prompt.
func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	body, err := g.payload(system, prompt, false)
	if err != nil {
		return "", err
	}
	resp, err := g.do(ctx, g.httpClient, body)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}
	return result.Choices[0].Message.Content, nil
}

// GenerateStream yields completion fragments parsed from the SSE stream.
func (g *OpenAIGenerator) GenerateStream(ctx context.Context, system, prompt string) (<-chan Delta, error) {
	body, err := g.payload(system, prompt, true)
	if err != nil {
		return nil, err
	}
	resp, err := g.do(ctx, g.streamClient, body)
	if err != nil {
		return nil, err
	}

	out := make(chan Delta)
	go func() {
		defer close(out)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var event struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}
			if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case out <- Delta{Text: event.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			out <- Delta{Err: fmt.Errorf("stream read failed: %w", err)}
		}
	}()
	return out, nil
}
