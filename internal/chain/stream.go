package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hukumqa/hukumqa/internal/models"
)

// QueryStream answers a question as an event stream: exactly one metadata
// event, then zero or more chunk events, then exactly one done event. The
// confidence gate applies as in Query; a refused request still produces the
// three-phase sequence with the refusal text as its single chunk.
func (c *Chain) QueryStream(ctx context.Context, question string, opts *Options) (<-chan models.StreamEvent, error) {
	o := opts.normalized()
	if c.generator == nil {
		return nil, fmt.Errorf("chain: no generator configured")
	}
	if !c.answerable(question) {
		confidence := models.ConfidenceScore{Label: models.ConfidenceTidakAda}
		events := make(chan models.StreamEvent)
		go func() {
			defer close(events)
			events <- models.StreamEvent{Type: models.EventMetadata, Citations: []models.Citation{}, Sources: []string{}, Confidence: &confidence}
			events <- models.StreamEvent{Type: models.EventChunk, Text: refusalNoResults}
			events <- models.StreamEvent{Type: models.EventDone, Validation: &models.ValidationResult{
				IsValid:           true,
				HallucinationRisk: models.RiskLow,
				Warnings:          []string{"Pertanyaan kosong atau hanya berisi kata umum."},
			}}
		}()
		return events, nil
	}

	results, err := c.retrieve(ctx, question, o)
	if err != nil {
		return nil, err
	}
	if len(results) > o.K {
		results = results[:o.K]
	}

	citations := BuildCitations(results)
	sources := Sources(results)
	confidence := ScoreConfidence(results)

	events := make(chan models.StreamEvent)

	if len(results) == 0 || confidence.Score < confidenceGate {
		message := refusalNoResults
		risk := models.RiskLow
		var warnings []string
		if len(results) > 0 {
			message = refusalLowConf
			risk = models.RiskRefused
			warnings = []string{"Keyakinan pengambilan terlalu rendah untuk menghasilkan jawaban."}
		}
		go func() {
			defer close(events)
			events <- models.StreamEvent{Type: models.EventMetadata, Citations: citations, Sources: sources, Confidence: &confidence}
			events <- models.StreamEvent{Type: models.EventChunk, Text: message}
			events <- models.StreamEvent{Type: models.EventDone, Validation: &models.ValidationResult{
				IsValid:           true,
				HallucinationRisk: risk,
				Warnings:          warnings,
			}}
		}()
		return events, nil
	}

	contextText := BuildContext(results)
	qtype := DetectQuestionType(question)

	genStart := time.Now()
	deltas, err := c.generator.GenerateStream(ctx, SystemPrompt(o.Mode, qtype), UserPrompt(question, contextText))
	if err != nil {
		if c.metrics != nil {
			c.metrics.GenerationErrors.WithLabelValues(c.generator.Name()).Inc()
		}
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	go func() {
		defer close(events)
		events <- models.StreamEvent{Type: models.EventMetadata, Citations: citations, Sources: sources, Confidence: &confidence}

		var full strings.Builder
		for delta := range deltas {
			if delta.Err != nil {
				c.logger.WithError(delta.Err).Warn("Stream interrupted")
				break
			}
			full.WriteString(delta.Text)
			events <- models.StreamEvent{Type: models.EventChunk, Text: delta.Text}
		}
		if c.metrics != nil {
			c.metrics.GenerationDuration.WithLabelValues(c.generator.Name()).Observe(time.Since(genStart).Seconds())
		}

		cleaned, cited, _ := ExtractCitedSources(full.String())
		validation := ValidateCitations(cited, len(citations))
		if !o.SkipGrounding {
			score, ungrounded := VerifyGrounding(ctx, c.generator, cleaned, citations, c.logger)
			validation.GroundingScore = score
			validation.UngroundedClaims = ungrounded
		}
		events <- models.StreamEvent{Type: models.EventDone, Validation: &validation}
	}()
	return events, nil
}
