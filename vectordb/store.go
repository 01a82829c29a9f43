// Package vectordb defines the vector index contract: persistence of chunks
// with embeddings, geo coordinates and metadata, similarity search with exact
// metadata filtering, and geo-radius-constrained hybrid ranking.
package vectordb

import (
	"context"

	"github.com/viant/ragcore/schema"
)

// Result ordering for geo-constrained search.
const (
	OrderSimilarity = "similarity"
	OrderDistance   = "distance"
	OrderHybrid     = "hybrid"
)

// Defaults applied by implementations when a request leaves them zero.
const (
	DefaultTopK         = 10
	DefaultRadiusMeters = 1000.0
	DefaultAlpha        = 0.7
)

// StoreRequest carries one document with its chunks and their embeddings.
// len(Embeddings) must equal len(Chunks); a violation rejects the whole
// document.
type StoreRequest struct {
	Document   schema.Document
	Chunks     []*schema.Chunk
	Embeddings [][]float32
}

// StoreResult reports the outcome of storing one document.
type StoreResult struct {
	DocumentID string
	// Stored and Skipped count chunk rows; skipped rows are content
	// duplicates, which are not errors.
	Stored  int
	Skipped int
	// Updated is true when the document id already existed and the store
	// overwrote it (idempotent re-ingestion).
	Updated bool
}

// BatchStoreResult aggregates per-document outcomes. Failed documents carry
// an empty id at their input position and an entry in Errors.
type BatchStoreResult struct {
	DocumentIDs []string
	Stored      int
	Skipped     int
	Errors      []error
}

// SearchRequest describes a similarity search over the index.
type SearchRequest struct {
	Embedding []float32
	TopK      int
	// SimilarityThreshold is strict: only rows with score above it are
	// eligible.
	SimilarityThreshold float64
	// MetadataFilters supports exact equality plus numeric ranges through
	// the _min/_max key suffix convention.
	MetadataFilters map[string]any
	// DocumentIDs restricts the search to a subset of documents when set.
	DocumentIDs []string
}

// GeoSearchRequest adds a hard geo-radius constraint and hybrid ranking to a
// similarity search. Rows without a geo point are always excluded.
type GeoSearchRequest struct {
	SearchRequest
	Lat          float64
	Lon          float64
	RadiusMeters float64
	// OrderBy is one of similarity, distance, hybrid (default hybrid).
	OrderBy string
	// Alpha in [0,1] weights similarity against normalized proximity in
	// hybrid ranking.
	Alpha float64
}

// VectorStore persists chunks with embeddings and serves ranked retrieval.
type VectorStore interface {
	// Store persists one document atomically. Content duplicates are
	// skipped, an existing document id is overwritten.
	Store(ctx context.Context, request StoreRequest) (*StoreResult, error)
	// BatchStore processes documents sequentially, isolating per-document
	// failures.
	BatchStore(ctx context.Context, requests []StoreRequest) (*BatchStoreResult, error)
	// Search returns results ordered by descending similarity.
	Search(ctx context.Context, request SearchRequest) ([]*schema.RetrievalResult, error)
	// SearchWithinRadius returns results within the radius, ranked per
	// OrderBy.
	SearchWithinRadius(ctx context.Context, request GeoSearchRequest) ([]*schema.RetrievalResult, error)
	// GetDocument returns document metadata, ErrNotFound when absent.
	GetDocument(ctx context.Context, documentID string) (*schema.Document, error)
	// DeleteDocument removes a document and all of its chunks.
	DeleteDocument(ctx context.Context, documentID string) error
	Close() error
}
