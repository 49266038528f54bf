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

// GeminiConfig configures the Gemini-style back-end.
type GeminiConfig struct {
	BaseURL     string        `json:"base_url"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
	Retry       RetryConfig   `json:"-"`
}

// DefaultGeminiConfig returns defaults for the hosted Gemini API.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		Model:       "gemini-2.0-flash",
		Temperature: 0.1,
		MaxTokens:   2048,
		Timeout:     120 * time.Second,
		Retry:       DefaultRetryConfig(),
	}
}

// GeminiGenerator talks to a generateContent-style API.
type GeminiGenerator struct {
	config       GeminiConfig
	tokens       TokenSource
	httpClient   *http.Client
	streamClient *http.Client
	logger       *logrus.Logger
}

// NewGeminiGenerator builds the back-end.
func NewGeminiGenerator(cfg GeminiConfig, tokens TokenSource, logger *logrus.Logger) *GeminiGenerator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGeminiConfig().Timeout
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &GeminiGenerator{
		config:       cfg,
		tokens:       tokens,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
		logger:       logger,
	}
}

func (g *GeminiGenerator) Name() string {
	return "gemini/" + g.config.Model
}

func (g *GeminiGenerator) payload(system, prompt string) ([]byte, error) {
	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     g.config.Temperature,
			"maxOutputTokens": g.config.MaxTokens,
		},
	}
	if system != "" {
		body["system_instruction"] = map[string]interface{}{
			"parts": []map[string]string{{"text": system}},
		}
	}
	return json.Marshal(body)
}

func (g *GeminiGenerator) do(ctx context.Context, client *http.Client, path string, body []byte) (*http.Response, error) {
	refreshed := false
	for {
		token, err := g.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain token: %w", err)
		}

		build := func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+path, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("x-goog-api-key", token)
			return req, nil
		}

		resp, err := executeWithRetry(ctx, client, g.config.Retry, build)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			_ = resp.Body.Close()
			if refreshed {
				return nil, ErrUnauthorized
			}
			refreshed = true
			g.logger.Warn("Provider rejected credentials, refreshing")
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

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r *geminiResponse) text() string {
	var sb strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
		break
	}
	return sb.String()
}

// Generate returns the full completion for prompt.
func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	body, err := g.payload(system, prompt)
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("/models/%s:generateContent", g.config.Model)
	resp, err := g.do(ctx, g.httpClient, path, body)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode completion: %w", err)
	}
	text := result.text()
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}
	return text, nil
}

// GenerateStream yields completion fragments from the SSE variant of the
// generate endpoint.
func (g *GeminiGenerator) GenerateStream(ctx context.Context, system, prompt string) (<-chan Delta, error) {
	body, err := g.payload(system, prompt)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/models/%s:streamGenerateContent?alt=sse", g.config.Model)
	resp, err := g.do(ctx, g.streamClient, path, body)
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
			var event geminiResponse
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}
			text := event.text()
			if text == "" {
				continue
			}
			select {
			case out <- Delta{Text: text}:
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
