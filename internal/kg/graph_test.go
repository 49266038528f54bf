package kg

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hukumqa/hukumqa/internal/models"
)

func buildTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph(nil)

	nodes := []*Node{
		{ID: "uu_13_2003", Type: NodeLaw, Number: "13", Year: "2003", About: "Ketenagakerjaan"},
		{ID: "uu_11_2020", Type: NodeLaw, Number: "11", Year: "2020", About: "Cipta Kerja"},
		{ID: "pp_35_2021", Type: NodeGovernmentRegulation, Number: "35", Year: "2021", About: "PKWT dan PHK"},
		{ID: "perpres_10_2021", Type: NodePresidentialRegulation, Number: "10", Year: "2021"},
		{ID: "uu_11_2020/bab_4", Type: NodeChapter, Parent: "uu_11_2020", Title: "Ketenagakerjaan"},
		{ID: "uu_11_2020/pasal_81", Type: NodeArticle, Parent: "uu_11_2020/bab_4", Text: "Beberapa ketentuan diubah."},
	}
	for _, n := range nodes {
		require.NoError(t, g.AddNode(n))
	}

	require.NoError(t, g.AddEdge("uu_11_2020", "uu_13_2003", EdgeAmends, map[string]interface{}{"pasal": "81"}))
	require.NoError(t, g.AddEdge("pp_35_2021", "uu_11_2020", EdgeImplements, nil))
	require.NoError(t, g.AddEdge("perpres_10_2021", "uu_11_2020", EdgeReferences, nil))
	require.NoError(t, g.AddEdge("uu_11_2020", "uu_11_2020/bab_4", EdgeContains, nil))
	require.NoError(t, g.AddEdge("uu_11_2020/bab_4", "uu_11_2020/pasal_81", EdgeContains, nil))
	return g
}

func TestAddNodeDuplicate(t *testing.T) {
	g := NewGraph(nil)
	require.NoError(t, g.AddNode(&Node{ID: "uu_1_2000", Type: NodeLaw}))
	assert.Error(t, g.AddNode(&Node{ID: "uu_1_2000", Type: NodeLaw}))
}

func TestEnsureReverseEdgesIdempotent(t *testing.T) {
	g := buildTestGraph(t)

	// amends and implements get inverses; references and contains do not.
	added := g.EnsureReverseEdges()
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, g.EnsureReverseEdges())

	stats := g.GetStats()
	assert.Equal(t, 1, stats.EdgesByType[EdgeAmendedBy])
	assert.Equal(t, 1, stats.EdgesByType[EdgeImplementedBy])
	assert.Equal(t, 0, stats.EdgesByType[EdgeRevokedBy])
}

func TestAmendmentsBothDirections(t *testing.T) {
	g := buildTestGraph(t)
	g.EnsureReverseEdges()

	forward := g.Amendments("uu_11_2020")
	require.Len(t, forward, 1)
	assert.Equal(t, "uu_11_2020", forward[0].Source)
	assert.Equal(t, "uu_13_2003", forward[0].Target)
	assert.Equal(t, models.AmendmentAmends, forward[0].Type)

	backward := g.Amendments("uu_13_2003")
	require.Len(t, backward, 1)
	assert.Equal(t, forward[0].Source, backward[0].Source)
	assert.Equal(t, forward[0].Target, backward[0].Target)
}

func TestNeighborhoodOneHop(t *testing.T) {
	g := buildTestGraph(t)
	g.EnsureReverseEdges()

	reached, err := g.Neighborhood(context.Background(), []string{"uu_11_2020"}, 1, BoostEdgeTypes)
	require.NoError(t, err)

	assert.True(t, reached["uu_11_2020"])
	assert.True(t, reached["uu_13_2003"])    // amends, outgoing
	assert.True(t, reached["pp_35_2021"])    // implements, incoming
	assert.True(t, reached["perpres_10_2021"]) // references, incoming
	assert.False(t, reached["uu_11_2020/bab_4"]) // contains is not followed
}

func TestNeighborhoodHopLimit(t *testing.T) {
	g := buildTestGraph(t)
	g.EnsureReverseEdges()

	reached, err := g.Neighborhood(context.Background(), []string{"uu_13_2003"}, 1, BoostEdgeTypes)
	require.NoError(t, err)
	assert.True(t, reached["uu_11_2020"])
	// pp_35_2021 is two hops away from uu_13_2003.
	assert.False(t, reached["pp_35_2021"])
}

func TestNeighborhoodDeadline(t *testing.T) {
	g := buildTestGraph(t)
	g.EnsureReverseEdges()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reached, err := g.Neighborhood(ctx, []string{"uu_11_2020"}, 2, BoostEdgeTypes)
	assert.Error(t, err)
	// Seeds are always part of the result even on preemption.
	assert.True(t, reached["uu_11_2020"])
}

func TestRelatedRegulations(t *testing.T) {
	g := buildTestGraph(t)
	g.EnsureReverseEdges()

	related, err := g.RelatedRegulations(context.Background(), "uu_11_2020")
	require.NoError(t, err)

	byID := make(map[string]EdgeType)
	for _, r := range related {
		byID[r.ID] = r.Relation
	}
	assert.Equal(t, EdgeAmends, byID["uu_13_2003"])
	assert.Equal(t, EdgeImplementedBy, byID["pp_35_2021"])
	assert.NotContains(t, byID, "uu_11_2020/bab_4")

	_, err = g.RelatedRegulations(context.Background(), "uu_99_1999")
	assert.Error(t, err)
}

func TestRelatedRegulationsBudget(t *testing.T) {
	g := buildTestGraph(t)
	g.EnsureReverseEdges()

	start := time.Now()
	_, err := g.RelatedRegulations(context.Background(), "uu_11_2020")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), DefaultRelatedBudget)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g := buildTestGraph(t)
	require.NoError(t, g.AddEdge("uu_11_2020", "uu_13_2003", EdgeReferences, nil)) // multi-typed pair
	g.EnsureReverseEdges()

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, g.Save(path))

	loaded, err := Load(path, nil)
	require.NoError(t, err)

	want := g.GetStats()
	got := loaded.GetStats()
	assert.Equal(t, want.Nodes, got.Nodes)
	assert.Equal(t, want.Edges, got.Edges)
	assert.Equal(t, want.EdgesByType, got.EdgesByType)
	assert.Equal(t, want.NodesByType, got.NodesByType)

	n, ok := loaded.GetNode("uu_11_2020/pasal_81")
	require.True(t, ok)
	assert.Equal(t, NodeArticle, n.Type)
	assert.Equal(t, "Beberapa ketentuan diubah.", n.Text)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}
