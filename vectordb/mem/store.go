// Package mem provides an in-memory VectorStore with optional snapshot
// persistence. It backs tests and embedded deployments; the sqlitevec store
// is the durable engine.
package mem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"

	"github.com/viant/ragcore/embeddings"
	"github.com/viant/ragcore/geo"
	"github.com/viant/ragcore/schema"
	"github.com/viant/ragcore/vectordb"
	"github.com/viant/ragcore/vectordb/contenthash"
)

// StoreOption configures the store.
type StoreOption func(*Store)

// WithDimension pins the embedding width up front; otherwise the store adopts
// the width of the first stored vector.
func WithDimension(dim int) StoreOption {
	return func(s *Store) {
		if dim > 0 {
			s.dimension = dim
		}
	}
}

// WithBaseURL enables snapshot persistence under the given afs URL.
func WithBaseURL(baseURL string) StoreOption {
	return func(s *Store) { s.baseURL = baseURL }
}

type row struct {
	chunkID    string
	documentID string
	text       string
	ordinal    int
	tokenCount int
	start, end int
	method     string
	hash       uint64
	embedding  []float32
	point      *schema.GeoPoint
	meta       map[string]any
}

// Store is an in-memory vector index guarded by a RWMutex.
type Store struct {
	mu         sync.RWMutex
	rows       map[string]*row
	byDocument map[string][]string
	byContent  map[uint64]string
	documents  map[string]*schema.Document
	dimension  int
	baseURL    string
	fs         afs.Service
}

// NewStore creates an in-memory store.
func NewStore(options ...StoreOption) *Store {
	s := &Store{
		rows:       make(map[string]*row),
		byDocument: make(map[string][]string),
		byContent:  make(map[uint64]string),
		documents:  make(map[string]*schema.Document),
		fs:         afs.New(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Store persists one document. Validation happens before any mutation, so a
// rejected document leaves no partial state behind.
func (s *Store) Store(ctx context.Context, request vectordb.StoreRequest) (*vectordb.StoreResult, error) {
	if len(request.Chunks) == 0 {
		return nil, &vectordb.ValidationError{Reason: "document produced no chunks"}
	}
	if len(request.Embeddings) != len(request.Chunks) {
		return nil, &vectordb.DimensionMismatchError{Got: len(request.Embeddings), Want: len(request.Chunks), Kind: "count"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, embedding := range request.Embeddings {
		if s.dimension == 0 {
			s.dimension = len(embedding)
		}
		if len(embedding) != s.dimension {
			return nil, &vectordb.DimensionMismatchError{Got: len(embedding), Want: s.dimension, Kind: "width"}
		}
	}

	documentID := request.Document.ID
	if documentID == "" {
		documentID = uuid.NewString()
	}
	existing, updated := s.documents[documentID]
	if updated {
		s.removeDocumentLocked(documentID)
	}

	result := &vectordb.StoreResult{DocumentID: documentID, Updated: updated}
	now := time.Now()
	for i, chunk := range request.Chunks {
		hash := contenthash.HashText(chunk.Text)
		if _, duplicate := s.byContent[hash]; duplicate {
			result.Skipped++
			continue
		}
		chunkID := chunk.ID
		if chunkID == "" {
			chunkID = fmt.Sprintf("%s:%d-%d", documentID, chunk.StartOffset, chunk.EndOffset)
		}
		point := schema.GeoPointFromMetadata(chunk.Metadata)
		if point == nil {
			point = schema.GeoPointFromMetadata(request.Document.Metadata)
		}
		s.rows[chunkID] = &row{
			chunkID:    chunkID,
			documentID: documentID,
			text:       chunk.Text,
			ordinal:    chunk.Ordinal,
			tokenCount: chunk.TokenCount,
			start:      chunk.StartOffset,
			end:        chunk.EndOffset,
			method:     chunk.Method,
			hash:       hash,
			embedding:  request.Embeddings[i],
			point:      point,
			meta:       vectordb.MergeMetadata(&request.Document, chunk),
		}
		s.byDocument[documentID] = append(s.byDocument[documentID], chunkID)
		s.byContent[hash] = chunkID
		result.Stored++
	}
	if result.Stored == 0 && !updated {
		// Every chunk of a new document was a content duplicate: the document
		// is reported as skipped and no document row is created. A re-ingested
		// document keeps its row, with a zero chunk count.
		result.DocumentID = ""
		return result, nil
	}

	document := request.Document
	document.ID = documentID
	document.ChunkCount = result.Stored
	document.CreatedAt = now
	if updated && existing != nil {
		document.CreatedAt = existing.CreatedAt
	}
	document.UpdatedAt = now
	s.documents[documentID] = &document
	return result, nil
}

// BatchStore stores documents sequentially; one failure does not abort the
// rest.
func (s *Store) BatchStore(ctx context.Context, requests []vectordb.StoreRequest) (*vectordb.BatchStoreResult, error) {
	result := &vectordb.BatchStoreResult{DocumentIDs: make([]string, len(requests))}
	for i, request := range requests {
		stored, err := s.Store(ctx, request)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("document %d: %w", i, err))
			continue
		}
		result.DocumentIDs[i] = stored.DocumentID
		result.Stored += stored.Stored
		result.Skipped += stored.Skipped
	}
	return result, nil
}

// Search scans all rows, which is adequate at the in-memory scale this store
// targets.
func (s *Store) Search(ctx context.Context, request vectordb.SearchRequest) ([]*schema.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed := documentSet(request.DocumentIDs)
	var results []*schema.RetrievalResult
	for _, r := range s.rows {
		if allowed != nil && !allowed[r.documentID] {
			continue
		}
		score := embeddings.Cosine(r.embedding, request.Embedding)
		if score <= request.SimilarityThreshold {
			continue
		}
		if !vectordb.MatchesFilters(r.meta, request.MetadataFilters) {
			continue
		}
		results = append(results, r.result(score))
	}
	topK := request.TopK
	if topK <= 0 {
		topK = vectordb.DefaultTopK
	}
	return vectordb.RankResults(results, vectordb.OrderSimilarity, topK), nil
}

// SearchWithinRadius restricts candidates to rows whose geo point lies within
// the radius and ranks by the requested ordering.
func (s *Store) SearchWithinRadius(ctx context.Context, request vectordb.GeoSearchRequest) ([]*schema.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	radius := request.RadiusMeters
	if radius <= 0 {
		radius = vectordb.DefaultRadiusMeters
	}
	orderBy := request.OrderBy
	if orderBy == "" {
		orderBy = vectordb.OrderHybrid
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed := documentSet(request.DocumentIDs)
	var results []*schema.RetrievalResult
	for _, r := range s.rows {
		if r.point == nil {
			continue
		}
		if allowed != nil && !allowed[r.documentID] {
			continue
		}
		distance := geo.Distance(request.Lat, request.Lon, r.point.Lat, r.point.Lon)
		if distance > radius {
			continue
		}
		score := embeddings.Cosine(r.embedding, request.Embedding)
		if score <= request.SimilarityThreshold {
			continue
		}
		if !vectordb.MatchesFilters(r.meta, request.MetadataFilters) {
			continue
		}
		result := r.result(score)
		result.DistanceMeters = &distance
		if orderBy == vectordb.OrderHybrid {
			hybrid := vectordb.HybridScore(score, distance, radius, request.Alpha)
			result.HybridScore = &hybrid
		}
		results = append(results, result)
	}
	topK := request.TopK
	if topK <= 0 {
		topK = vectordb.DefaultTopK
	}
	return vectordb.RankResults(results, orderBy, topK), nil
}

// GetDocument returns a copy of the stored document metadata.
func (s *Store) GetDocument(ctx context.Context, documentID string) (*schema.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	document, ok := s.documents[documentID]
	if !ok {
		return nil, vectordb.ErrNotFound
	}
	copied := *document
	return &copied, nil
}

// DeleteDocument removes the document and all of its chunks.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[documentID]; !ok {
		return vectordb.ErrNotFound
	}
	s.removeDocumentLocked(documentID)
	return nil
}

// Close persists a snapshot when a base URL is configured.
func (s *Store) Close() error {
	if s.baseURL == "" {
		return nil
	}
	return s.Persist(context.Background())
}

func (s *Store) removeDocumentLocked(documentID string) {
	for _, chunkID := range s.byDocument[documentID] {
		if r, ok := s.rows[chunkID]; ok {
			delete(s.byContent, r.hash)
			delete(s.rows, chunkID)
		}
	}
	delete(s.byDocument, documentID)
	delete(s.documents, documentID)
}

func (r *row) result(score float64) *schema.RetrievalResult {
	meta := make(map[string]any, len(r.meta))
	for k, v := range r.meta {
		meta[k] = v
	}
	return &schema.RetrievalResult{
		ChunkID:    r.chunkID,
		DocumentID: r.documentID,
		Text:       r.text,
		Score:      score,
		Metadata:   meta,
	}
}

func documentSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
