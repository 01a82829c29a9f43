package schema

import (
	"time"
)

// Document represents an ingested source document. A document exists only
// once all of its chunks have been embedded and stored.
type Document struct {
	ID         string         `json:"id"`
	Title      string         `json:"title,omitempty"`
	Source     string         `json:"source,omitempty"`
	Language   string         `json:"language,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ChunkCount int            `json:"chunk_count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Chunk is a bounded contiguous span of a document's text, the unit of
// embedding and retrieval. Chunks are immutable once stored.
type Chunk struct {
	ID          string         `json:"id"`
	DocumentID  string         `json:"document_id"`
	Text        string         `json:"text"`
	Ordinal     int            `json:"ordinal"`
	TokenCount  int            `json:"token_count"`
	StartOffset int            `json:"start_offset"`
	EndOffset   int            `json:"end_offset"`
	Method      string         `json:"method,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// GeoPoint is a WGS84 coordinate pair derived from source metadata.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RetrievalResult is a ranked search hit. DistanceMeters and HybridScore are
// populated only by geo-constrained search.
type RetrievalResult struct {
	ChunkID        string         `json:"chunk_id"`
	DocumentID     string         `json:"document_id"`
	Text           string         `json:"content"`
	Score          float64        `json:"similarity_score"`
	DistanceMeters *float64       `json:"distance_m,omitempty"`
	HybridScore    *float64       `json:"hybrid_score,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
