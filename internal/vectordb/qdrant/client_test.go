package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hukumqa/hukumqa/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(&Config{
		URL:        srv.URL,
		Collection: "peraturan",
		VectorSize: 4,
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return c, srv
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, BuildFilter(nil))
	assert.Nil(t, BuildFilter(&models.QueryFilter{}))

	f := BuildFilter(&models.QueryFilter{JenisDokumen: "UU", Nomor: "11", Tahun: "2020", Pasal: "5"})
	must := f["must"].([]map[string]interface{})
	require.Len(t, must, 4)
	assert.Equal(t, "jenis_dokumen", must[0]["key"])
	assert.Equal(t, map[string]interface{}{"value": "UU"}, must[0]["match"])
	assert.Equal(t, "pasal", must[3]["key"])
}

func TestQueryPointsSendsFilter(t *testing.T) {
	var captured map[string]interface{}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/peraturan/points/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": []map[string]interface{}{
				{"id": "p1", "score": 0.91, "payload": map[string]interface{}{"citation_id": "uu_11_2020/pasal_5"}},
				{"id": "p2", "score": 0.74},
			},
		})
	}))

	filter := BuildFilter(&models.QueryFilter{JenisDokumen: "UU"})
	hits, err := c.QueryPoints(context.Background(), []float64{0.1, 0.2, 0.3, 0.4}, 10, filter)
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, 0.91, hits[0].Score)
	assert.Equal(t, "uu_11_2020/pasal_5", hits[0].Payload["citation_id"])
	assert.NotNil(t, captured["filter"])
	assert.Equal(t, float64(10), captured["limit"])
}

func TestScrollAllPaginates(t *testing.T) {
	page := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/peraturan/points/scroll", r.URL.Path)
		page++
		if page == 1 {
			next := "cursor-2"
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"result": map[string]interface{}{
					"points":           []map[string]interface{}{{"id": "a"}, {"id": "b"}},
					"next_page_offset": next,
				},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"points":           []map[string]interface{}{{"id": "c"}},
				"next_page_offset": nil,
			},
		})
	}))

	points, err := c.ScrollAll(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, points, 3)
	assert.Equal(t, 2, page)
}

func TestBulkIngestToggles(t *testing.T) {
	var bodies []map[string]interface{}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": true})
	}))

	require.NoError(t, c.BeginBulkIngest(context.Background()))
	require.NoError(t, c.FinishBulkIngest(context.Background()))

	require.Len(t, bodies, 2)
	begin := bodies[0]["hnsw_config"].(map[string]interface{})
	assert.Equal(t, float64(0), begin["m"])
	finish := bodies[1]["hnsw_config"].(map[string]interface{})
	assert.Equal(t, float64(16), finish["m"])
	assert.Equal(t, float64(100), finish["ef_construct"])
}

func TestUpsertAssignsIDs(t *testing.T) {
	var captured struct {
		Points []Point `json:"points"`
	}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": true})
	}))

	err := c.UpsertPoints(context.Background(), []Point{
		{Vector: []float64{1, 0, 0, 0}},
		{ID: "fixed", Vector: []float64{0, 1, 0, 0}},
	})
	require.NoError(t, err)

	require.Len(t, captured.Points, 2)
	assert.NotEmpty(t, captured.Points[0].ID)
	assert.Equal(t, "fixed", captured.Points[1].ID)
}

func TestDeleteByFilterRequiresFilter(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": true})
	}))
	assert.Error(t, c.DeleteByFilter(context.Background(), nil))
	assert.NoError(t, c.DeleteByFilter(context.Background(), BuildFilter(&models.QueryFilter{Tahun: "2020"})))
}

func TestErrorStatusSurfaces(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"collection not found"}}`, http.StatusNotFound)
	}))
	_, err := c.QueryPoints(context.Background(), []float64{0, 0, 0, 0}, 5, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, (&Config{Collection: "x", VectorSize: 1}).Validate())
	assert.Error(t, (&Config{URL: "http://q", VectorSize: 1}).Validate())
	assert.Error(t, (&Config{URL: "http://q", Collection: "x"}).Validate())

	cfg := &Config{URL: "http://q", Collection: "x", VectorSize: 4}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultConfig().Timeout, cfg.Timeout)
}
