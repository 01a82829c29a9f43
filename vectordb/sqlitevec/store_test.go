package sqlitevec

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/viant/ragcore/schema"
	"github.com/viant/ragcore/vectordb"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "index.db")
	s, err := NewStore(WithDSN(dsn), WithEnsureSchema(true))
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func unitVector(values ...float32) []float32 {
	var norm float64
	for _, v := range values {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return values
	}
	scale := float32(1 / math.Sqrt(norm))
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = v * scale
	}
	return out
}

func request(docID, text string, embedding []float32, metadata map[string]any) vectordb.StoreRequest {
	return vectordb.StoreRequest{
		Document: schema.Document{ID: docID, Title: "title-" + docID, Metadata: metadata},
		Chunks: []*schema.Chunk{
			{Text: text, Ordinal: 0, TokenCount: 2, EndOffset: len(text)},
		},
		Embeddings: [][]float32{embedding},
	}
}

func TestStore_StoreAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	embedding := unitVector(1, 2, 3)
	result, err := s.Store(ctx, request("doc-1", "content one", embedding, map[string]any{"city": "Berlin"}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Stored != 1 || result.DocumentID != "doc-1" {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := s.Store(ctx, request("doc-2", "content two", unitVector(3, 2, 1), map[string]any{"city": "Paris"})); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, vectordb.SearchRequest{Embedding: embedding, TopK: 5, SimilarityThreshold: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits")
	}
	if hits[0].Text != "content one" {
		t.Errorf("expected exact content ranked first, got %q", hits[0].Text)
	}
	if math.Abs(hits[0].Score-1.0) > 1e-5 {
		t.Errorf("expected similarity ~1.0, got %f", hits[0].Score)
	}
	if got := schema.GetString(hits[0].Metadata, "city"); got != "Berlin" {
		t.Errorf("expected metadata snapshot, got city=%q", got)
	}

	filtered, err := s.Search(ctx, vectordb.SearchRequest{
		Embedding:           embedding,
		TopK:                5,
		SimilarityThreshold: -1,
		MetadataFilters:     map[string]any{"city": "Paris"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].DocumentID != "doc-2" {
		t.Fatalf("expected only doc-2, got %+v", filtered)
	}
}

func TestStore_Dedup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	embedding := unitVector(1, 0)
	if _, err := s.Store(ctx, request("doc-1", "identical", embedding, nil)); err != nil {
		t.Fatal(err)
	}
	second, err := s.Store(ctx, request("doc-2", "identical", embedding, nil))
	if err != nil {
		t.Fatalf("dedup must not error: %v", err)
	}
	if second.Stored != 0 || second.Skipped != 1 || second.DocumentID != "" {
		t.Fatalf("expected skip, got %+v", second)
	}
	if _, err := s.GetDocument(ctx, "doc-2"); err != vectordb.ErrNotFound {
		t.Errorf("duplicate document must not be registered, got %v", err)
	}
}

func TestStore_Upsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Store(ctx, request("doc-1", "old revision", unitVector(1, 0), nil)); err != nil {
		t.Fatal(err)
	}
	first, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	result, err := s.Store(ctx, request("doc-1", "new revision", unitVector(0, 1), nil))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Updated {
		t.Error("expected updated flag")
	}
	document, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if !document.CreatedAt.Equal(first.CreatedAt) {
		t.Error("created_at must survive upsert")
	}
	if !document.UpdatedAt.After(first.UpdatedAt) && !document.UpdatedAt.Equal(first.UpdatedAt) {
		t.Error("updated_at must be bumped")
	}
	hits, err := s.Search(ctx, vectordb.SearchRequest{Embedding: unitVector(0, 1), TopK: 10, SimilarityThreshold: -1})
	if err != nil {
		t.Fatal(err)
	}
	for _, hit := range hits {
		if hit.Text == "old revision" {
			t.Error("old revision must be gone after upsert")
		}
	}
}

func TestStore_Upsert_FullyDeduped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustStore(t, s, request("doc-a", "shared content", unitVector(1, 0), nil))
	mustStore(t, s, request("doc-b", "own content", unitVector(0, 1), nil))

	// Re-ingest doc-b with content that already lives under doc-a: the
	// revision stores nothing, but the document row survives.
	result, err := s.Store(ctx, request("doc-b", "shared content", unitVector(1, 0), nil))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Updated || result.Stored != 0 || result.Skipped != 1 || result.DocumentID != "doc-b" {
		t.Fatalf("unexpected result %+v", result)
	}
	document, err := s.GetDocument(ctx, "doc-b")
	if err != nil {
		t.Fatalf("re-ingested document must keep its row: %v", err)
	}
	if document.ChunkCount != 0 {
		t.Errorf("expected zero chunk count, got %d", document.ChunkCount)
	}
	hits, err := s.Search(ctx, vectordb.SearchRequest{Embedding: unitVector(0, 1), TopK: 10, SimilarityThreshold: -1})
	if err != nil {
		t.Fatal(err)
	}
	for _, hit := range hits {
		if hit.DocumentID == "doc-b" {
			t.Errorf("previous revision chunks must be gone, got %q", hit.Text)
		}
	}
}

func TestStore_CountMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	broken := vectordb.StoreRequest{
		Document:   schema.Document{ID: "doc-1"},
		Chunks:     []*schema.Chunk{{Text: "a"}, {Text: "b"}},
		Embeddings: [][]float32{unitVector(1, 0)},
	}
	if _, err := s.Store(ctx, broken); err == nil {
		t.Fatal("expected count mismatch")
	}
	if _, err := s.GetDocument(ctx, "doc-1"); err != vectordb.ErrNotFound {
		t.Errorf("no partial document may exist, got %v", err)
	}
}

func TestStore_SearchWithinRadius(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	query := unitVector(1, 0)
	geoMeta := func(lat, lon float64) map[string]any {
		return map[string]any{"lat": lat, "lon": lon}
	}
	mustStore(t, s, request("near", "near venue", unitVector(1, 0), geoMeta(52.5200, 13.4050)))
	mustStore(t, s, request("far", "far venue", unitVector(1, 0), geoMeta(53.5200, 13.4050)))
	mustStore(t, s, request("no-geo", "no geo venue", unitVector(1, 0), nil))

	hits, err := s.SearchWithinRadius(ctx, vectordb.GeoSearchRequest{
		SearchRequest: vectordb.SearchRequest{Embedding: query, TopK: 10, SimilarityThreshold: -1},
		Lat:           52.5200,
		Lon:           13.4050,
		RadiusMeters:  1000,
		OrderBy:       vectordb.OrderHybrid,
		Alpha:         0.7,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "near" {
		t.Fatalf("expected only the in-radius row, got %+v", hits)
	}
	if hits[0].DistanceMeters == nil || *hits[0].DistanceMeters > 1 {
		t.Errorf("expected ~0 distance, got %v", hits[0].DistanceMeters)
	}
	if hits[0].HybridScore == nil {
		t.Error("hybrid ordering must carry hybrid score")
	}
}

func TestStore_BatchStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	requests := []vectordb.StoreRequest{
		request("doc-1", "first", unitVector(1, 0), nil),
		{Document: schema.Document{ID: "doc-2"}, Chunks: []*schema.Chunk{{Text: "broken"}}},
		request("doc-3", "third", unitVector(0, 1), nil),
	}
	result, err := s.BatchStore(ctx, requests)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one per-item error, got %d", len(result.Errors))
	}
	if result.Stored != 2 {
		t.Errorf("stored count must reflect successful inserts, got %d", result.Stored)
	}
	if result.DocumentIDs[1] != "" {
		t.Errorf("failed item must carry empty id")
	}
}

func TestStore_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustStore(t, s, request("doc-1", "to delete", unitVector(1, 0), nil))
	if err := s.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetDocument(ctx, "doc-1"); err != vectordb.ErrNotFound {
		t.Errorf("expected not found, got %v", err)
	}
	if err := s.DeleteDocument(ctx, "doc-1"); err != vectordb.ErrNotFound {
		t.Errorf("expected not found on second delete, got %v", err)
	}
	hits, err := s.Search(ctx, vectordb.SearchRequest{Embedding: unitVector(1, 0), TopK: 10, SimilarityThreshold: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("chunks must cascade on delete, got %d hits", len(hits))
	}
}

func mustStore(t *testing.T, s *Store, req vectordb.StoreRequest) {
	t.Helper()
	if _, err := s.Store(context.Background(), req); err != nil {
		t.Fatal(err)
	}
}
