// Package tokenizer implements the Indonesian legal-text tokenizer backing
// the sparse index. The lexicon (abbreviation expansions and stopwords) is
// data, not code; retrieval behavior depends on it staying stable.
package tokenizer

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/lexicon.yaml
var lexiconYAML []byte

type lexicon struct {
	Abbreviations map[string]string `yaml:"abbreviations"`
	Stopwords     []string          `yaml:"stopwords"`
}

var tokenRe = regexp.MustCompile(`[a-z0-9]{2,}`)

// Tokenizer lowercases, expands legal abbreviations, strips stopwords, and
// emits unigrams plus adjacent-pair bigrams. Stateless after construction.
type Tokenizer struct {
	abbrevRe     *regexp.Regexp
	abbrevExpand map[string]string
	stopwords    map[string]struct{}
}

// New builds a tokenizer from the embedded lexicon.
func New() (*Tokenizer, error) {
	var lex lexicon
	if err := yaml.Unmarshal(lexiconYAML, &lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}

	keys := make([]string, 0, len(lex.Abbreviations))
	for k := range lex.Abbreviations {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	// Abbreviations match as whole lowercase words only.
	re, err := regexp.Compile(`\b(` + strings.Join(keys, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile abbreviation pattern: %w", err)
	}

	stop := make(map[string]struct{}, len(lex.Stopwords))
	for _, w := range lex.Stopwords {
		stop[w] = struct{}{}
	}

	return &Tokenizer{
		abbrevRe:     re,
		abbrevExpand: lex.Abbreviations,
		stopwords:    stop,
	}, nil
}

// Tokenize returns the ordered bag of tokens for text: content unigrams
// followed by "a_b" bigrams over consecutive unigrams. Output length is
// bounded by input length.
func (t *Tokenizer) Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	expanded := t.abbrevRe.ReplaceAllStringFunc(lowered, func(m string) string {
		return t.abbrevExpand[m]
	})

	raw := tokenRe.FindAllString(expanded, -1)
	unigrams := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, stop := t.stopwords[tok]; stop {
			continue
		}
		unigrams = append(unigrams, tok)
	}

	tokens := make([]string, 0, 2*len(unigrams))
	tokens = append(tokens, unigrams...)
	for i := 0; i+1 < len(unigrams); i++ {
		tokens = append(tokens, unigrams[i]+"_"+unigrams[i+1])
	}
	return tokens
}

// IsStopword reports whether a lowercase word is in the stopword set.
func (t *Tokenizer) IsStopword(word string) bool {
	_, ok := t.stopwords[word]
	return ok
}

// ContentTokens returns only the unigrams of Tokenize, without bigrams.
// Used where bigram recall is not wanted, e.g. topic extraction.
func (t *Tokenizer) ContentTokens(text string) []string {
	all := t.Tokenize(text)
	out := make([]string, 0, len(all))
	for _, tok := range all {
		if !strings.Contains(tok, "_") {
			out = append(out, tok)
		}
	}
	return out
}
