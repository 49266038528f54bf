package chain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hukumqa/hukumqa/internal/llm"
	"github.com/hukumqa/hukumqa/internal/metrics"
	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/retriever"
	"github.com/hukumqa/hukumqa/internal/strategy"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type searchCall struct {
	query string
	k     int
	opts  *retriever.SearchOptions
}

type mockSearcher struct {
	calls []searchCall
	fn    func(query string, k int) ([]models.SearchResult, error)
}

func (m *mockSearcher) HybridSearch(_ context.Context, query string, k int, opts *retriever.SearchOptions) ([]models.SearchResult, error) {
	m.calls = append(m.calls, searchCall{query: query, k: k, opts: opts})
	return m.fn(query, k)
}

// queueGenerator replays canned responses in order. Generate and
// GenerateStream draw from the same queue.
type queueGenerator struct {
	responses []string
	err       error
	calls     int
	systems   []string
	prompts   []string
}

func (g *queueGenerator) Name() string { return "queue" }

func (g *queueGenerator) next(system, prompt string) (string, error) {
	g.systems = append(g.systems, system)
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if g.calls >= len(g.responses) {
		return "", errors.New("queue exhausted")
	}
	response := g.responses[g.calls]
	g.calls++
	return response, nil
}

func (g *queueGenerator) Generate(_ context.Context, system, prompt string) (string, error) {
	return g.next(system, prompt)
}

func (g *queueGenerator) GenerateStream(_ context.Context, system, prompt string) (<-chan llm.Delta, error) {
	response, err := g.next(system, prompt)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.Delta, len(response))
	go func() {
		defer close(ch)
		// Stream in two fragments to exercise reassembly.
		mid := len(response) / 2
		ch <- llm.Delta{Text: response[:mid]}
		ch <- llm.Delta{Text: response[mid:]}
	}()
	return ch, nil
}

func result(id, jenis string, score float64) models.SearchResult {
	return models.SearchResult{
		Chunk: models.Chunk{
			ID:         id,
			Citation:   jenis + " No. 11 Tahun 2020 Pasal 1",
			CitationID: "uu_11_2020_Pasal1",
			Text:       "Ketentuan mengenai " + id + ".",
			Metadata:   models.ChunkMetadata{JenisDokumen: jenis, Nomor: "11", Tahun: "2020", Pasal: "1"},
		},
		Score: score,
		Stage: models.StageFused,
	}
}

// Raw fused score with normalized value ~0.76 against the RRF ceiling.
const strongScore = 0.025

const answerWithFooter = "PHK diatur dalam UU Ketenagakerjaan [1].\n\n```json\n{\"cited_sources\": [1]}\n```"

const groundingVerdictJSON = `{"grounding_score": 0.9, "ungrounded_claims": [], "grounded_claims": ["PHK diatur dalam UU Ketenagakerjaan"]}`

func TestDetectQuestionType(t *testing.T) {
	assert.Equal(t, QuestionDefinisi, DetectQuestionType("Apa itu PHK?"))
	assert.Equal(t, QuestionProsedur, DetectQuestionType("Bagaimana cara mendirikan PT?"))
	assert.Equal(t, QuestionPersyaratan, DetectQuestionType("Apa saja syarat pendirian CV?"))
	assert.Equal(t, QuestionSanksi, DetectQuestionType("Berapa denda pelanggaran upah minimum?"))
	assert.Equal(t, QuestionUmum, DetectQuestionType("Kapan UU Cipta Kerja berlaku?"))
}

func TestBuildContext(t *testing.T) {
	results := []models.SearchResult{result("c1", "UU", 1), result("c2", "PP", 1)}

	ctx := BuildContext(results)

	assert.Contains(t, ctx, "[1] UU No. 11 Tahun 2020 Pasal 1\nKetentuan mengenai c1.\n---\n")
	assert.Contains(t, ctx, "[2] PP No. 11 Tahun 2020 Pasal 1")
}

func TestBuildCitationsSnippetTruncation(t *testing.T) {
	r := result("c1", "UU", 0.02561)
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	r.Text = string(long)

	citations := BuildCitations([]models.SearchResult{r})

	require.Len(t, citations, 1)
	assert.Equal(t, 1, citations[0].Number)
	assert.Equal(t, 0.0256, citations[0].Score)
	snippet := citations[0].Metadata["snippet"].(string)
	assert.Len(t, snippet, 500)
}

func TestScoreConfidence(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		conf := ScoreConfidence(nil)
		assert.Equal(t, models.ConfidenceTidakAda, conf.Label)
		assert.Zero(t, conf.Score)
	})

	t.Run("strong uniform national results", func(t *testing.T) {
		results := []models.SearchResult{
			result("c1", "UU", strongScore),
			result("c2", "UU", strongScore),
			result("c3", "PP", strongScore),
		}
		conf := ScoreConfidence(results)
		assert.Equal(t, models.ConfidenceTinggi, conf.Label)
		assert.GreaterOrEqual(t, conf.Score, 0.65)
		assert.InDelta(t, 0.7625, conf.TopScore, 0.01)
	})

	t.Run("weak scattered regional results", func(t *testing.T) {
		results := []models.SearchResult{
			result("c1", "Perda", 0.001),
			result("c2", "Perda", 0.00001),
		}
		conf := ScoreConfidence(results)
		assert.Equal(t, models.ConfidenceRendah, conf.Label)
		assert.Less(t, conf.Score, confidenceGate)
	})
}

func TestExtractCitedSources(t *testing.T) {
	t.Run("fenced footer", func(t *testing.T) {
		cleaned, cited, fromFooter := ExtractCitedSources(answerWithFooter)
		assert.True(t, fromFooter)
		assert.Equal(t, "PHK diatur dalam UU Ketenagakerjaan [1].", cleaned)
		assert.Equal(t, []int{1}, cited)
	})

	t.Run("bare trailing json", func(t *testing.T) {
		cleaned, cited, fromFooter := ExtractCitedSources("Jawaban [2].\n{\"cited_sources\": [2, 3]}")
		assert.True(t, fromFooter)
		assert.Equal(t, "Jawaban [2].", cleaned)
		assert.Equal(t, []int{2, 3}, cited)
	})

	t.Run("regex fallback", func(t *testing.T) {
		cleaned, cited, fromFooter := ExtractCitedSources("Menurut [1] dan [3], serta [1] lagi.")
		assert.False(t, fromFooter)
		assert.Equal(t, "Menurut [1] dan [3], serta [1] lagi.", cleaned)
		assert.Equal(t, []int{1, 3}, cited)
	})
}

func TestValidateCitations(t *testing.T) {
	t.Run("no citations is high risk", func(t *testing.T) {
		v := ValidateCitations(nil, 5)
		assert.False(t, v.IsValid)
		assert.Equal(t, models.RiskHigh, v.HallucinationRisk)
		assert.NotEmpty(t, v.Warnings)
	})

	t.Run("invalid citation is medium risk", func(t *testing.T) {
		v := ValidateCitations([]int{1, 7}, 5)
		assert.False(t, v.IsValid)
		assert.Equal(t, models.RiskMedium, v.HallucinationRisk)
		assert.Equal(t, []int{7}, v.MissingCitations)
	})

	t.Run("low coverage is medium risk", func(t *testing.T) {
		v := ValidateCitations([]int{1}, 5)
		assert.True(t, v.IsValid)
		assert.Equal(t, models.RiskMedium, v.HallucinationRisk)
		assert.InDelta(t, 0.2, v.CitationCoverage, 1e-9)
	})

	t.Run("full coverage is low risk", func(t *testing.T) {
		v := ValidateCitations([]int{1, 2}, 2)
		assert.True(t, v.IsValid)
		assert.Equal(t, models.RiskLow, v.HallucinationRisk)
		assert.InDelta(t, 1.0, v.CitationCoverage, 1e-9)
	})
}

func TestVerifyGrounding(t *testing.T) {
	citations := BuildCitations([]models.SearchResult{result("c1", "UU", strongScore)})

	t.Run("parses verdict", func(t *testing.T) {
		gen := &queueGenerator{responses: []string{groundingVerdictJSON}}
		score, ungrounded := VerifyGrounding(context.Background(), gen, "jawaban", citations, testLogger())
		require.NotNil(t, score)
		assert.InDelta(t, 0.9, *score, 1e-9)
		assert.Empty(t, ungrounded)
	})

	t.Run("judge failure leaves fields unset", func(t *testing.T) {
		gen := &queueGenerator{err: errors.New("judge down")}
		score, ungrounded := VerifyGrounding(context.Background(), gen, "jawaban", citations, testLogger())
		assert.Nil(t, score)
		assert.Nil(t, ungrounded)
	})

	t.Run("non-json verdict leaves fields unset", func(t *testing.T) {
		gen := &queueGenerator{responses: []string{"tidak bisa menilai"}}
		score, _ := VerifyGrounding(context.Background(), gen, "jawaban", citations, testLogger())
		assert.Nil(t, score)
	})
}

func TestQueryHappyPath(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return []models.SearchResult{
			result("c1", "UU", strongScore),
			result("c2", "PP", strongScore),
		}, nil
	}}
	gen := &queueGenerator{responses: []string{answerWithFooter, groundingVerdictJSON}}

	c := New(searcher, gen, nil, testLogger())
	resp, err := c.Query(context.Background(), "apa itu PHK?", &Options{K: 5})

	require.NoError(t, err)
	assert.Equal(t, "PHK diatur dalam UU Ketenagakerjaan [1].", resp.Answer)
	require.Len(t, resp.Citations, 2)
	assert.Equal(t, models.ConfidenceTinggi, resp.Confidence)
	require.NotNil(t, resp.Validation.GroundingScore)
	assert.InDelta(t, 0.9, *resp.Validation.GroundingScore, 1e-9)
	// Coverage 1/2 with no invalid references.
	assert.Equal(t, models.RiskLow, resp.Validation.HallucinationRisk)
}

func TestQueryNoResultsRefuses(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return nil, nil
	}}
	gen := &queueGenerator{responses: []string{"tidak dipanggil"}}

	c := New(searcher, gen, nil, testLogger())
	resp, err := c.Query(context.Background(), "pertanyaan tanpa hasil", nil)

	require.NoError(t, err)
	assert.Equal(t, refusalNoResults, resp.Answer)
	assert.Equal(t, models.ConfidenceTidakAda, resp.Confidence)
	assert.Equal(t, models.RiskLow, resp.Validation.HallucinationRisk)
	assert.True(t, resp.Validation.IsValid)
	assert.Zero(t, gen.calls)
}

func TestQueryBlankQuestionRefusesWithoutRetrieval(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return []models.SearchResult{result("c1", "UU", strongScore)}, nil
	}}
	gen := &queueGenerator{responses: []string{"tidak dipanggil"}}

	c := New(searcher, gen, nil, testLogger())
	for _, q := range []string{"", "   ", "dan atau yang di"} {
		resp, err := c.Query(context.Background(), q, nil)
		require.NoError(t, err)
		assert.Equal(t, refusalNoResults, resp.Answer)
		assert.Equal(t, models.ConfidenceTidakAda, resp.Confidence)
		assert.True(t, resp.Validation.IsValid)
	}
	assert.Empty(t, searcher.calls)
	assert.Zero(t, gen.calls)
}

func TestQueryWithHistoryBlankQuestionRefuses(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return []models.SearchResult{result("c1", "UU", strongScore)}, nil
	}}
	gen := &queueGenerator{responses: []string{"tidak dipanggil"}}
	history := []models.ConversationTurn{{Question: "t1", Answer: "j1"}}

	c := New(searcher, gen, nil, testLogger())
	resp, err := c.QueryWithHistory(context.Background(), "   ", history, nil)

	require.NoError(t, err)
	assert.Equal(t, refusalNoResults, resp.Answer)
	assert.Empty(t, searcher.calls)
	assert.Zero(t, gen.calls)
}

func TestQueryConfidenceGateRefuses(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return []models.SearchResult{
			result("c1", "Perda", 0.001),
			result("c2", "Perda", 0.00001),
		}, nil
	}}
	gen := &queueGenerator{responses: []string{"tidak dipanggil"}}

	c := New(searcher, gen, nil, testLogger())
	resp, err := c.Query(context.Background(), "pertanyaan lemah", nil)

	require.NoError(t, err)
	assert.Equal(t, refusalLowConf, resp.Answer)
	assert.Equal(t, models.RiskRefused, resp.Validation.HallucinationRisk)
	assert.True(t, resp.Validation.IsValid)
	require.Len(t, resp.Validation.Warnings, 1)
	assert.Zero(t, gen.calls)
}

func TestQueryExplicitFilterBypassesCascade(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return []models.SearchResult{result("c1", "UU", strongScore)}, nil
	}}
	gen := &queueGenerator{responses: []string{answerWithFooter}}
	filter := &models.QueryFilter{JenisDokumen: "UU", Nomor: "11", Tahun: "2020"}

	c := New(searcher, gen, nil, testLogger())
	_, err := c.Query(context.Background(), "isi pasal 5", &Options{
		Filter:        filter,
		UseAgentic:    true,
		SkipGrounding: true,
	})

	require.NoError(t, err)
	// One direct call; the agentic path would have retried on the weak
	// average.
	require.Len(t, searcher.calls, 1)
	require.NotNil(t, searcher.calls[0].opts)
	assert.Equal(t, filter, searcher.calls[0].opts.Filter)
}

func TestQueryWithHistoryCompressesTurns(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return []models.SearchResult{result("c1", "UU", strongScore)}, nil
	}}
	gen := &queueGenerator{responses: []string{answerWithFooter}}
	history := []models.ConversationTurn{
		{Question: "t1", Answer: "j1"},
		{Question: "t2", Answer: "j2"},
		{Question: "t3", Answer: "j3"},
		{Question: "t4", Answer: "j4"},
	}

	c := New(searcher, gen, nil, testLogger())
	_, err := c.QueryWithHistory(context.Background(), "lanjutan", history, &Options{SkipGrounding: true})

	require.NoError(t, err)
	require.Len(t, searcher.calls, 1)
	query := searcher.calls[0].query
	assert.Contains(t, query, "T: t2")
	assert.Contains(t, query, "T: t4")
	assert.NotContains(t, query, "T: t1")
	assert.Contains(t, query, "Pertanyaan saat ini: lanjutan")
}

func TestQueryStreamEventOrder(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return []models.SearchResult{result("c1", "UU", strongScore)}, nil
	}}
	gen := &queueGenerator{responses: []string{answerWithFooter}}

	c := New(searcher, gen, nil, testLogger())
	events, err := c.QueryStream(context.Background(), "apa itu PHK?", &Options{SkipGrounding: true})
	require.NoError(t, err)

	var collected []models.StreamEvent
	for ev := range events {
		collected = append(collected, ev)
	}

	require.GreaterOrEqual(t, len(collected), 3)
	assert.Equal(t, models.EventMetadata, collected[0].Type)
	require.NotNil(t, collected[0].Confidence)
	assert.Len(t, collected[0].Citations, 1)

	var text string
	for _, ev := range collected[1 : len(collected)-1] {
		assert.Equal(t, models.EventChunk, ev.Type)
		text += ev.Text
	}
	assert.Equal(t, answerWithFooter, text)

	done := collected[len(collected)-1]
	assert.Equal(t, models.EventDone, done.Type)
	require.NotNil(t, done.Validation)
	assert.Equal(t, models.RiskLow, done.Validation.HallucinationRisk)
}

func TestQuerySendsSystemMessageSeparately(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return []models.SearchResult{result("c1", "UU", strongScore)}, nil
	}}
	gen := &queueGenerator{responses: []string{answerWithFooter}}

	c := New(searcher, gen, nil, testLogger())
	_, err := c.Query(context.Background(), "apa itu PHK?", &Options{SkipGrounding: true})

	require.NoError(t, err)
	require.Len(t, gen.systems, 1)
	assert.Equal(t, SystemPrompt(ModeAnalysis, QuestionDefinisi), gen.systems[0])
	assert.NotContains(t, gen.prompts[0], systemPromptAnalysis)
	assert.Contains(t, gen.prompts[0], "apa itu PHK?")
}

func TestQueryParentChildWidensRetrievedResults(t *testing.T) {
	store := strategy.NewParentStore()
	store.Add("uu_13_2003_Pasal59", "Pasal 59 lengkap tentang PKWT.")

	child := result("c1", "UU", strongScore)
	child.Metadata.ParentCitationID = "uu_13_2003_Pasal59"
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return []models.SearchResult{child}, nil
	}}
	gen := &queueGenerator{responses: []string{answerWithFooter}}

	c := New(searcher, gen, store, testLogger())
	resp, err := c.Query(context.Background(), "apa itu PKWT?", &Options{
		UseParentChild: true,
		SkipGrounding:  true,
	})

	require.NoError(t, err)
	// Widening reuses the retrieved set instead of searching again.
	require.Len(t, searcher.calls, 1)
	assert.Contains(t, resp.Context, "Pasal 59 lengkap tentang PKWT.")
}

func TestQueryRecordsGenerationMetrics(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return []models.SearchResult{result("c1", "UU", strongScore)}, nil
	}}

	t.Run("success observes duration", func(t *testing.T) {
		gen := &queueGenerator{responses: []string{answerWithFooter}}
		collector := metrics.NewCollector(nil)

		c := New(searcher, gen, nil, testLogger()).WithMetrics(collector)
		_, err := c.Query(context.Background(), "apa itu PHK?", &Options{SkipGrounding: true})

		require.NoError(t, err)
		assert.Equal(t, 1, testutil.CollectAndCount(collector.GenerationDuration))
		assert.Equal(t, 0, testutil.CollectAndCount(collector.GenerationErrors))
	})

	t.Run("failure counts error", func(t *testing.T) {
		gen := &queueGenerator{err: errors.New("provider down")}
		collector := metrics.NewCollector(nil)

		c := New(searcher, gen, nil, testLogger()).WithMetrics(collector)
		_, err := c.Query(context.Background(), "apa itu PHK?", &Options{SkipGrounding: true})

		require.Error(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(collector.GenerationErrors.WithLabelValues("queue")))
	})
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 300)
	out := truncate(s, 499)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("é", 249), out)
	assert.Equal(t, "pendek", truncate("pendek", 499))
}

func TestBuildCitationsSnippetMultibyteTruncation(t *testing.T) {
	r := result("c1", "UU", strongScore)
	r.Text = strings.Repeat("•", 200)

	citations := BuildCitations([]models.SearchResult{r})

	require.Len(t, citations, 1)
	snippet := citations[0].Metadata["snippet"].(string)
	assert.True(t, utf8.ValidString(snippet))
	assert.LessOrEqual(t, len(snippet), snippetLen)
	assert.Equal(t, strings.Repeat("•", 166), snippet)
}

func TestQueryStreamRefusalSequence(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return nil, nil
	}}
	gen := &queueGenerator{responses: []string{"tidak dipanggil"}}

	c := New(searcher, gen, nil, testLogger())
	events, err := c.QueryStream(context.Background(), "pertanyaan tanpa hasil", nil)
	require.NoError(t, err)

	var collected []models.StreamEvent
	for ev := range events {
		collected = append(collected, ev)
	}

	require.Len(t, collected, 3)
	assert.Equal(t, models.EventMetadata, collected[0].Type)
	assert.Equal(t, models.EventChunk, collected[1].Type)
	assert.Equal(t, refusalNoResults, collected[1].Text)
	assert.Equal(t, models.EventDone, collected[2].Type)
	assert.Zero(t, gen.calls)
}

func TestQueryStreamBlankQuestionRefusalSequence(t *testing.T) {
	searcher := &mockSearcher{fn: func(string, int) ([]models.SearchResult, error) {
		return []models.SearchResult{result("c1", "UU", strongScore)}, nil
	}}
	gen := &queueGenerator{responses: []string{"tidak dipanggil"}}

	c := New(searcher, gen, nil, testLogger())
	events, err := c.QueryStream(context.Background(), "dan atau yang di", nil)
	require.NoError(t, err)

	var collected []models.StreamEvent
	for ev := range events {
		collected = append(collected, ev)
	}

	require.Len(t, collected, 3)
	assert.Equal(t, models.EventMetadata, collected[0].Type)
	assert.Equal(t, models.EventChunk, collected[1].Type)
	assert.Equal(t, refusalNoResults, collected[1].Text)
	assert.Equal(t, models.EventDone, collected[2].Type)
	assert.Empty(t, searcher.calls)
	assert.Zero(t, gen.calls)
}
