package strategy

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/llm"
	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/retriever"
)

// Retrieval grades.
const (
	GradeCorrect   = "correct"
	GradeAmbiguous = "ambiguous"
	GradeIncorrect = "incorrect"
)

// Grading thresholds over normalized scores.
const (
	gradeCorrectMin   = 0.7
	gradeAmbiguousMin = 0.3
)

const rephrasePrompt = `Tulis ulang pertanyaan hukum berikut agar lebih mudah dicocokkan dengan teks peraturan perundang-undangan Indonesia. Gunakan istilah hukum yang baku. Jawab hanya dengan pertanyaan hasil tulis ulang.

Pertanyaan: %s`

// CRAG grades an initial retrieval and corrects weak results by rephrasing
// the query and retrieving again.
type CRAG struct {
	searcher  Searcher
	generator llm.Generator
	logger    *logrus.Logger
}

// NewCRAG builds the corrector.
func NewCRAG(searcher Searcher, generator llm.Generator, logger *logrus.Logger) *CRAG {
	if logger == nil {
		logger = logrus.New()
	}
	return &CRAG{searcher: searcher, generator: generator, logger: logger}
}

// Grade classifies a retrieval by its normalized average score.
func Grade(results []models.SearchResult) string {
	if len(results) == 0 {
		return GradeIncorrect
	}
	avg := models.NormalizedAverage(results)
	switch {
	case avg >= gradeCorrectMin:
		return GradeCorrect
	case avg >= gradeAmbiguousMin:
		return GradeAmbiguous
	default:
		return GradeIncorrect
	}
}

// Correct applies the corrective policy to an initial retrieval: correct
// keeps it, ambiguous merges in a rephrased retrieval, incorrect replaces
// it. Without a generator the initial results pass through.
func (c *CRAG) Correct(ctx context.Context, question string, initial []models.SearchResult, k int, opts *retriever.SearchOptions) ([]models.SearchResult, error) {
	grade := Grade(initial)
	c.logger.WithField("grade", grade).Debug("Retrieval graded")

	if grade == GradeCorrect || c.generator == nil {
		return initial, nil
	}

	rephrased, err := c.generator.Generate(ctx, "", fmt.Sprintf(rephrasePrompt, question))
	if err != nil || rephrased == "" {
		c.logger.WithError(err).Warn("Rephrasing failed, keeping initial retrieval")
		return initial, nil
	}

	corrected, err := c.searcher.HybridSearch(ctx, rephrased, k, opts)
	if err != nil {
		c.logger.WithError(err).Warn("Corrective retrieval failed, keeping initial retrieval")
		return initial, nil
	}

	switch grade {
	case GradeAmbiguous:
		merged := RRFMerge(initial, corrected)
		if len(merged) > k {
			merged = merged[:k]
		}
		return merged, nil
	default: // incorrect: replace
		if len(corrected) == 0 {
			return initial, nil
		}
		if len(corrected) > k {
			corrected = corrected[:k]
		}
		return corrected, nil
	}
}
