package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tok, err := New()
	require.NoError(t, err)
	return tok
}

func TestTokenizeExpandsAbbreviations(t *testing.T) {
	tok := newTokenizer(t)

	tokens := tok.Tokenize("syarat mendirikan PT")
	assert.Contains(t, tokens, "perseroan")
	assert.Contains(t, tokens, "terbatas")
	assert.NotContains(t, tokens, "pt")
}

func TestTokenizeUUDoesNotLeak(t *testing.T) {
	tok := newTokenizer(t)

	// "UU" must expand before stopword removal, never surviving as "uu".
	tokens := tok.Tokenize("UU Cipta Kerja")
	assert.NotContains(t, tokens, "uu")
	assert.Contains(t, tokens, "undang")
	assert.Contains(t, tokens, "cipta")
	assert.Contains(t, tokens, "kerja")
}

func TestTokenizeDropsStopwords(t *testing.T) {
	tok := newTokenizer(t)

	tokens := tok.Tokenize("hak dan kewajiban yang diatur dalam peraturan ini")
	for _, forbidden := range []string{"dan", "yang", "dalam", "ini"} {
		assert.NotContains(t, tokens, forbidden)
	}
	assert.Contains(t, tokens, "hak")
	assert.Contains(t, tokens, "kewajiban")
}

func TestTokenizeNeverEmitsStopwords(t *testing.T) {
	tok := newTokenizer(t)

	tokens := tok.Tokenize("apa saja sanksi administratif bagi pelaku usaha yang tidak memiliki izin dan dokumen")
	for _, token := range tokens {
		if strings.Contains(token, "_") {
			continue
		}
		assert.False(t, tok.IsStopword(token), "stopword leaked: %s", token)
	}
}

func TestTokenizeBigrams(t *testing.T) {
	tok := newTokenizer(t)

	tokens := tok.Tokenize("upah minimum provinsi")
	assert.Contains(t, tokens, "upah")
	assert.Contains(t, tokens, "minimum")
	assert.Contains(t, tokens, "provinsi")
	assert.Contains(t, tokens, "upah_minimum")
	assert.Contains(t, tokens, "minimum_provinsi")
}

func TestBigramComponentsArePresentAsUnigrams(t *testing.T) {
	tok := newTokenizer(t)

	tokens := tok.Tokenize("ketentuan pidana bagi korporasi yang melanggar izin lingkungan hidup")
	unigrams := make(map[string]bool)
	for _, token := range tokens {
		if !strings.Contains(token, "_") {
			unigrams[token] = true
		}
	}
	for _, token := range tokens {
		if parts := strings.SplitN(token, "_", 2); len(parts) == 2 {
			assert.True(t, unigrams[parts[0]], "bigram %s missing left unigram", token)
			assert.True(t, unigrams[parts[1]], "bigram %s missing right unigram", token)
		}
	}
}

func TestTokenizeMinLength(t *testing.T) {
	tok := newTokenizer(t)

	tokens := tok.Tokenize("a b izin")
	assert.Equal(t, []string{"izin"}, tokens)
}

func TestTokenizeEmpty(t *testing.T) {
	tok := newTokenizer(t)

	assert.Empty(t, tok.Tokenize(""))
	assert.Empty(t, tok.Tokenize("   "))
	assert.Empty(t, tok.Tokenize("dan atau yang"))
}

func TestContentTokens(t *testing.T) {
	tok := newTokenizer(t)

	tokens := tok.ContentTokens("upah minimum provinsi")
	assert.Equal(t, []string{"upah", "minimum", "provinsi"}, tokens)
}
