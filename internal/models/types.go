// Package models holds the domain types shared across the retrieval and
// generation pipeline: regulation chunks, search results, legal references,
// confidence and validation reports, and the final response shape.
package models

// ChunkMetadata carries the regulation coordinates of a chunk as produced by
// ingestion. All fields are immutable once loaded.
type ChunkMetadata struct {
	JenisDokumen     string `json:"jenis_dokumen"`
	Nomor            string `json:"nomor"`
	Tahun            string `json:"tahun"`
	Judul            string `json:"judul,omitempty"`
	Tentang          string `json:"tentang,omitempty"`
	Bab              string `json:"bab,omitempty"`
	Pasal            string `json:"pasal,omitempty"`
	Ayat             string `json:"ayat,omitempty"`
	ParentCitationID string `json:"parent_citation_id,omitempty"`
	ParentContext    string `json:"parent_context,omitempty"`
	IsPenjelasan     bool   `json:"is_penjelasan,omitempty"`
	QualityFlag      string `json:"quality_flag,omitempty"`
	ContentHash      string `json:"content_hash,omitempty"`
	Filepath         string `json:"filepath,omitempty"`
	Source           string `json:"source,omitempty"`
	FormatPattern    string `json:"format_pattern,omitempty"`
	IngestedAt       string `json:"ingested_at,omitempty"`
}

// Chunk is one retrievable unit of regulation text.
type Chunk struct {
	ID         string        `json:"id"`
	Citation   string        `json:"citation"`
	CitationID string        `json:"citation_id"`
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// SearchResult is a chunk carried through the pipeline with a score. The
// score semantics depend on the stage recorded in Stage.
type SearchResult struct {
	Chunk
	Score float64 `json:"score"`
	Stage string  `json:"stage,omitempty"`
}

// Score stages.
const (
	StageDense    = "dense"
	StageSparse   = "sparse"
	StageFused    = "fused"
	StageBoosted  = "boosted"
	StageReranked = "reranked"
)

// QueryFilter is a conjunction of equality constraints on chunk metadata.
// Empty fields are unset.
type QueryFilter struct {
	JenisDokumen string `json:"jenis_dokumen,omitempty"`
	Nomor        string `json:"nomor,omitempty"`
	Tahun        string `json:"tahun,omitempty"`
	Pasal        string `json:"pasal,omitempty"`
	Ayat         string `json:"ayat,omitempty"`
}

// IsZero reports whether no constraint is set.
func (f *QueryFilter) IsZero() bool {
	if f == nil {
		return true
	}
	return f.JenisDokumen == "" && f.Nomor == "" && f.Tahun == "" && f.Pasal == "" && f.Ayat == ""
}

// ConfidenceScore is the calibrated retrieval confidence for one request.
type ConfidenceScore struct {
	Score    float64 `json:"score"`
	Label    string  `json:"label"`
	TopScore float64 `json:"top_score"`
	AvgScore float64 `json:"avg_score"`
}

// Confidence labels.
const (
	ConfidenceTinggi   = "tinggi"
	ConfidenceSedang   = "sedang"
	ConfidenceRendah   = "rendah"
	ConfidenceTidakAda = "tidak ada"
)

// Hallucination risk levels.
const (
	RiskLow     = "low"
	RiskMedium  = "medium"
	RiskHigh    = "high"
	RiskRefused = "refused"
	RiskSkipped = "skipped"
	RiskError   = "error"
	RiskUnknown = "unknown"
)

// ValidationResult reports citation validation and grounding verification.
type ValidationResult struct {
	IsValid           bool     `json:"is_valid"`
	CitationCoverage  float64  `json:"citation_coverage"`
	Warnings          []string `json:"warnings,omitempty"`
	HallucinationRisk string   `json:"hallucination_risk"`
	MissingCitations  []int    `json:"missing_citations,omitempty"`
	GroundingScore    *float64 `json:"grounding_score,omitempty"`
	UngroundedClaims  []string `json:"ungrounded_claims,omitempty"`
}

// Citation is one numbered source attached to an answer.
type Citation struct {
	Number     int                    `json:"number"`
	CitationID string                 `json:"citation_id"`
	Citation   string                 `json:"citation"`
	Score      float64                `json:"score"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// RAGResponse is the full answer returned to callers.
type RAGResponse struct {
	Answer           string           `json:"answer"`
	Citations        []Citation       `json:"citations"`
	Sources          []string         `json:"sources"`
	Confidence       string           `json:"confidence"`
	ConfidenceDetail ConfidenceScore  `json:"confidence_detail"`
	Context          string           `json:"context,omitempty"`
	Validation       ValidationResult `json:"validation"`
}

// StreamEventType discriminates streaming events.
type StreamEventType string

const (
	EventMetadata StreamEventType = "metadata"
	EventChunk    StreamEventType = "chunk"
	EventDone     StreamEventType = "done"
)

// StreamEvent is one event of the streaming answer variant. Exactly one
// metadata event precedes all chunks; exactly one done event follows them.
type StreamEvent struct {
	Type       StreamEventType   `json:"type"`
	Text       string            `json:"text,omitempty"`
	Citations  []Citation        `json:"citations,omitempty"`
	Sources    []string          `json:"sources,omitempty"`
	Confidence *ConfidenceScore  `json:"confidence,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
}

// LegalReference is a structured reference to one regulation.
type LegalReference struct {
	Jenis    string `json:"jenis"`
	Nomor    string `json:"nomor"`
	Tahun    string `json:"tahun"`
	Relation string `json:"relation,omitempty"`
}

// Canonical returns the canonical form "{jenis}-{nomor}-{tahun}".
func (r LegalReference) Canonical() string {
	return r.Jenis + "-" + r.Nomor + "-" + r.Tahun
}

// AmendmentType classifies an amendment relation between two regulations.
type AmendmentType string

const (
	AmendmentAmends      AmendmentType = "amends"
	AmendmentRevokes     AmendmentType = "revokes"
	AmendmentReplaces    AmendmentType = "replaces"
	AmendmentSupplements AmendmentType = "supplements"
)

// AmendmentRelation records that Source amends/revokes/replaces/supplements
// Target. Confidence is 1.0 for body-text matches and 0.8 for title-derived.
type AmendmentRelation struct {
	Source     string        `json:"source"`
	Target     string        `json:"target"`
	Type       AmendmentType `json:"type"`
	Text       string        `json:"text,omitempty"`
	Confidence float64       `json:"confidence"`
}

// ConversationTurn is one past question/answer pair used by the
// history-aware query path.
type ConversationTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
