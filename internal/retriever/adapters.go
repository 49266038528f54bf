package retriever

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/embedding"
	"github.com/hukumqa/hukumqa/internal/kg"
	"github.com/hukumqa/hukumqa/internal/models"
	"github.com/hukumqa/hukumqa/internal/vectordb/qdrant"
)

// QdrantIndex adapts the vector store and an embedder into the dense stage.
type QdrantIndex struct {
	client   *qdrant.Client
	embedder embedding.Embedder
	logger   *logrus.Logger
}

// NewQdrantIndex builds the dense retrieval adapter.
func NewQdrantIndex(client *qdrant.Client, embedder embedding.Embedder, logger *logrus.Logger) *QdrantIndex {
	if logger == nil {
		logger = logrus.New()
	}
	return &QdrantIndex{client: client, embedder: embedder, logger: logger}
}

// Search embeds the query and runs filtered nearest-neighbor search.
func (q *QdrantIndex) Search(ctx context.Context, query string, k int, filter *models.QueryFilter) ([]models.SearchResult, error) {
	vector, err := q.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	hits, err := q.client.QueryPoints(ctx, vector, k, qdrant.BuildFilter(filter))
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		chunk := ChunkFromPayload(hit.ID, hit.Payload)
		results = append(results, models.SearchResult{
			Chunk: chunk,
			Score: hit.Score,
			Stage: models.StageDense,
		})
	}
	return results, nil
}

// ChunkFromPayload rebuilds a chunk from the flat point payload written by
// ingestion.
func ChunkFromPayload(id string, payload map[string]interface{}) models.Chunk {
	str := func(key string) string {
		if v, ok := payload[key].(string); ok {
			return v
		}
		return ""
	}
	boolean := func(key string) bool {
		v, _ := payload[key].(bool)
		return v
	}

	return models.Chunk{
		ID:         id,
		Citation:   str("citation"),
		CitationID: str("citation_id"),
		Text:       str("text"),
		Metadata: models.ChunkMetadata{
			JenisDokumen:     str("jenis_dokumen"),
			Nomor:            str("nomor"),
			Tahun:            str("tahun"),
			Judul:            str("judul"),
			Tentang:          str("tentang"),
			Bab:              str("bab"),
			Pasal:            str("pasal"),
			Ayat:             str("ayat"),
			ParentCitationID: str("parent_citation_id"),
			ParentContext:    str("parent_context"),
			IsPenjelasan:     boolean("is_penjelasan"),
			QualityFlag:      str("quality_flag"),
			ContentHash:      str("content_hash"),
			Filepath:         str("filepath"),
			Source:           str("source"),
			FormatPattern:    str("format_pattern"),
			IngestedAt:       str("ingested_at"),
		},
	}
}

// PayloadFromChunk flattens a chunk into the point payload form.
func PayloadFromChunk(c models.Chunk) map[string]interface{} {
	payload := map[string]interface{}{
		"citation":    c.Citation,
		"citation_id": c.CitationID,
		"text":        c.Text,
	}
	set := func(key, value string) {
		if value != "" {
			payload[key] = value
		}
	}
	m := c.Metadata
	set("jenis_dokumen", m.JenisDokumen)
	set("nomor", m.Nomor)
	set("tahun", m.Tahun)
	set("judul", m.Judul)
	set("tentang", m.Tentang)
	set("bab", m.Bab)
	set("pasal", m.Pasal)
	set("ayat", m.Ayat)
	set("parent_citation_id", m.ParentCitationID)
	set("parent_context", m.ParentContext)
	set("quality_flag", m.QualityFlag)
	set("content_hash", m.ContentHash)
	set("filepath", m.Filepath)
	set("source", m.Source)
	set("format_pattern", m.FormatPattern)
	set("ingested_at", m.IngestedAt)
	if m.IsPenjelasan {
		payload["is_penjelasan"] = true
	}
	return payload
}

// GraphAdapter exposes the knowledge graph to the boost stage.
type GraphAdapter struct {
	graph *kg.Graph
}

// NewGraphAdapter wraps a loaded graph.
func NewGraphAdapter(graph *kg.Graph) *GraphAdapter {
	return &GraphAdapter{graph: graph}
}

// RelatedSet expands seeds along the boost relations.
func (a *GraphAdapter) RelatedSet(ctx context.Context, seeds []string, hops int) (map[string]bool, error) {
	return a.graph.Neighborhood(ctx, seeds, hops, kg.BoostEdgeTypes)
}
