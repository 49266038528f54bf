package synonyms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExpander(t *testing.T) *Expander {
	t.Helper()
	e, err := NewExpander()
	require.NoError(t, err)
	return e
}

func TestTableLoads(t *testing.T) {
	e := newExpander(t)
	assert.GreaterOrEqual(t, e.GroupCount(), 55)
}

func TestExpandOriginalFirst(t *testing.T) {
	e := newExpander(t)

	variants := e.Expand("syarat mendirikan PT")
	require.NotEmpty(t, variants)
	assert.Equal(t, "syarat mendirikan PT", variants[0])
	assert.LessOrEqual(t, len(variants), 3)
}

func TestExpandSubstitutesSynonym(t *testing.T) {
	e := newExpander(t)

	variants := e.Expand("aturan phk untuk karyawan kontrak")
	require.GreaterOrEqual(t, len(variants), 2)
	// "phk" should be replaced by the canonical "pemutusan hubungan kerja".
	assert.Contains(t, variants[1], "pemutusan hubungan kerja")
}

func TestExpandAppendsKeywords(t *testing.T) {
	e := newExpander(t)

	variants := e.Expand("berapa upah minimum di jakarta")
	require.Len(t, variants, 3)
	appended := variants[2]
	assert.True(t, strings.HasPrefix(appended, "berapa upah minimum di jakarta"))
	assert.Greater(t, len(appended), len(variants[0]))
}

func TestExpandNoMatchReturnsOriginalOnly(t *testing.T) {
	e := newExpander(t)

	variants := e.Expand("resep nasi goreng enak")
	assert.Equal(t, []string{"resep nasi goreng enak"}, variants)
}

func TestExpandNamedRegulation(t *testing.T) {
	e := newExpander(t)

	variants := e.Expand("apa isi omnibus law")
	require.GreaterOrEqual(t, len(variants), 2)
	assert.Contains(t, variants[1], "cipta kerja")
}

func TestExpandWordBoundaries(t *testing.T) {
	e := newExpander(t)

	// "pt" inside another word must not match.
	variants := e.Expand("penerapan konsep optimal")
	assert.Equal(t, 1, len(variants))
}
