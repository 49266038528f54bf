package strategy

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/retriever"
)

// ParentStore maps a parent citation ID to the full text of the parent
// section. Built once at startup from the collection and read-only after.
type ParentStore struct {
	mu    sync.RWMutex
	texts map[string]string
}

// NewParentStore builds an empty store.
func NewParentStore() *ParentStore {
	return &ParentStore{texts: make(map[string]string)}
}

// Add appends chunk text under its parent citation ID. Chunks of the same
// parent concatenate in insertion order.
func (s *ParentStore) Add(parentID, text string) {
	if parentID == "" || text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.texts[parentID]; ok {
		s.texts[parentID] = existing + "\n\n" + text
	} else {
		s.texts[parentID] = text
	}
}

// Get returns the parent text, if known.
func (s *ParentStore) Get(parentID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.texts[parentID]
	return text, ok
}

// Len reports the number of distinct parents.
func (s *ParentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.texts)
}

// ParentChild retrieves small chunks for precision and widens each hit to
// its parent section for generation context. The child's citation and score
// survive; only the text widens.
type ParentChild struct {
	searcher Searcher
	store    *ParentStore
	logger   *logrus.Logger
}

// NewParentChild builds the strategy.
func NewParentChild(searcher Searcher, store *ParentStore, logger *logrus.Logger) *ParentChild {
	if logger == nil {
		logger = logrus.New()
	}
	return &ParentChild{searcher: searcher, store: store, logger: logger}
}

// Search retrieves 2k children and widens them to at most k parents.
func (p *ParentChild) Search(ctx context.Context, question string, k int, opts *retriever.SearchOptions) ([]models.SearchResult, error) {
	children, err := p.searcher.HybridSearch(ctx, question, 2*k, opts)
	if err != nil {
		return nil, err
	}
	return p.Widen(children, k), nil
}

// Widen maps already-retrieved children onto their parent sections in rank
// order, deduplicating by parent, until k parents are collected. When no
// child resolves to a parent the top k children pass through unchanged.
func (p *ParentChild) Widen(results []models.SearchResult, k int) []models.SearchResult {
	seen := make(map[string]bool)
	widened := make([]models.SearchResult, 0, k)
	for _, child := range results {
		parentID := child.Metadata.ParentCitationID
		if parentID == "" || seen[parentID] {
			continue
		}
		text, ok := p.store.Get(parentID)
		if !ok {
			continue
		}
		seen[parentID] = true
		res := child
		res.Text = text
		widened = append(widened, res)
		if len(widened) == k {
			break
		}
	}

	if len(widened) == 0 {
		p.logger.Debug("No parents resolved, keeping child chunks")
		if len(results) > k {
			results = results[:k]
		}
		return results
	}
	return widened
}
