// Package sparse provides the in-memory Okapi BM25 index over the full
// regulation corpus. The index is built once at startup from scrolled
// payloads and is read-only afterwards.
package sparse

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/tokenizer"
)

const (
	k1 = 1.5
	b  = 0.75
)

// Index is a static BM25 index. Lock-free reads after Build.
type Index struct {
	tok       *tokenizer.Tokenizer
	chunks    []models.Chunk
	docTokens [][]string
	docFreq   map[string]int
	docLen    []int
	avgDocLen float64
	logger    *logrus.Logger
}

// Build tokenizes the corpus and computes document frequencies.
func Build(tok *tokenizer.Tokenizer, chunks []models.Chunk, logger *logrus.Logger) *Index {
	if logger == nil {
		logger = logrus.New()
	}

	idx := &Index{
		tok:       tok,
		chunks:    chunks,
		docTokens: make([][]string, len(chunks)),
		docFreq:   make(map[string]int),
		docLen:    make([]int, len(chunks)),
		logger:    logger,
	}

	totalLen := 0
	for i, c := range chunks {
		tokens := tok.Tokenize(c.Text)
		idx.docTokens[i] = tokens
		idx.docLen[i] = len(tokens)
		totalLen += len(tokens)

		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			idx.docFreq[t]++
		}
	}
	if len(chunks) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(chunks))
	}

	logger.WithFields(logrus.Fields{
		"documents": len(chunks),
		"terms":     len(idx.docFreq),
	}).Info("BM25 index built")

	return idx
}

// Size returns the number of indexed documents.
func (idx *Index) Size() int {
	return len(idx.chunks)
}

// GetScores returns one BM25 score per indexed document for the query tokens.
func (idx *Index) GetScores(queryTokens []string) []float64 {
	n := float64(len(idx.chunks))
	scores := make([]float64, len(idx.chunks))
	if n == 0 || len(queryTokens) == 0 {
		return scores
	}

	for _, qt := range queryTokens {
		df, ok := idx.docFreq[qt]
		if !ok {
			continue
		}
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))

		for i, tokens := range idx.docTokens {
			tf := 0
			for _, t := range tokens {
				if t == qt {
					tf++
				}
			}
			if tf == 0 {
				continue
			}
			norm := 1 - b + b*float64(idx.docLen[i])/idx.avgDocLen
			scores[i] += idf * float64(tf) * (k1 + 1) / (float64(tf) + k1*norm)
		}
	}
	return scores
}

// Search tokenizes the query and returns the top-k documents by BM25 score,
// ties broken by chunk id. Documents with zero score are excluded.
func (idx *Index) Search(query string, k int) []models.SearchResult {
	scores := idx.GetScores(idx.tok.Tokenize(query))

	results := make([]models.SearchResult, 0, k)
	for i, s := range scores {
		if s <= 0 {
			continue
		}
		results = append(results, models.SearchResult{
			Chunk: idx.chunks[i],
			Score: s,
			Stage: models.StageSparse,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}
