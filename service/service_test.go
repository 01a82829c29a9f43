package service

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/viant/ragcore/chunker"
	"github.com/viant/ragcore/embeddings"
	"github.com/viant/ragcore/schema"
	"github.com/viant/ragcore/vectordb/mem"
)

// hashEmbedder returns deterministic vectors so that identical text maps to
// identical embeddings regardless of the query/passage prefix.
type hashEmbedder struct {
	dim int
}

func (e *hashEmbedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	out := make([][]float32, len(docs))
	for i, doc := range docs {
		out[i] = e.embed(doc)
	}
	return out, nil
}

func (e *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *hashEmbedder) embed(text string) []float32 {
	text = strings.TrimPrefix(text, "query: ")
	text = strings.TrimPrefix(text, "passage: ")
	var h uint32 = 2166136261
	for i := 0; i < len(text); i++ {
		h = h*16777619 ^ uint32(text[i])
	}
	v := make([]float32, e.dim)
	seed := h
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%10000)/10000.0 + 0.01
	}
	return v
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	encoder := embeddings.NewEncoder(&hashEmbedder{dim: 16})
	s, err := New(DefaultConfig(), WithStore(mem.NewStore()), WithEncoder(encoder))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestService_IngestAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	result, err := s.Ingest(ctx, IngestRequest{
		ID:    "doc-1",
		Title: "City Guide",
		Text:  "Berlin has many museums. Paris has the Louvre. Rome has ancient ruins.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.DocumentID != "doc-1" || result.ChunkCount == 0 {
		t.Fatalf("unexpected ingest result %+v", result)
	}

	query, err := s.Query(ctx, QueryRequest{
		Query: "Berlin has many museums. Paris has the Louvre. Rome has ancient ruins.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(query.Results) == 0 {
		t.Fatal("expected results")
	}
	if math.Abs(query.Results[0].Score-1.0) > 1e-5 {
		t.Errorf("expected similarity ~1.0 for identical text, got %f", query.Results[0].Score)
	}
	if !strings.Contains(query.Prompt, "City Guide") {
		t.Errorf("prompt should carry source title, got %q", query.Prompt)
	}
	if !strings.Contains(query.Prompt, "Question: Berlin") {
		t.Errorf("prompt should end with the question, got %q", query.Prompt)
	}
	if query.Stats.Included != len(query.Results) {
		t.Errorf("expected all blocks included, got %d of %d", query.Stats.Included, len(query.Results))
	}
	if query.Stats.EmbeddingTime < 0 || query.Stats.RetrievalTime < 0 {
		t.Error("stage timings must be populated")
	}
}

func TestService_Ingest_EmptyText(t *testing.T) {
	s := newTestService(t)
	if _, err := s.Ingest(context.Background(), IngestRequest{Text: "   \n  "}); err == nil {
		t.Fatal("expected validation error for whitespace-only input")
	}
}

func TestService_Ingest_Extraction(t *testing.T) {
	s := newTestService(t)
	result, err := s.Ingest(context.Background(), IngestRequest{
		ID:   "doc-file",
		Path: "notes.txt",
		Data: []byte("A document delivered as a file payload."),
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.ChunkCount == 0 {
		t.Error("expected chunks from extracted text")
	}
}

func TestService_BatchIngest_Isolation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	result, err := s.BatchIngest(ctx, []IngestRequest{
		{ID: "doc-1", Text: "First document body."},
		{ID: "doc-2", Text: ""},
		{ID: "doc-3", Text: "Third document body."},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one error, got %d", len(result.Errors))
	}
	if result.DocumentIDs[0] != "doc-1" || result.DocumentIDs[1] != "" || result.DocumentIDs[2] != "doc-3" {
		t.Errorf("unexpected ids %v", result.DocumentIDs)
	}
	if result.Stored == 0 {
		t.Error("stored count must reflect successful inserts")
	}
}

func TestService_ChunkerFor_ExplicitZeroOverlap(t *testing.T) {
	s := newTestService(t)
	text := strings.TrimSpace(strings.Repeat("word ", 150))

	zero := 0
	chunks := s.chunkerFor(chunker.MethodToken, 100, &zero).Chunk(text, nil)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].StartOffset < chunks[0].EndOffset {
		t.Error("explicit zero overlap must produce disjoint windows")
	}

	// A nil overlap falls back to the configured default.
	chunks = s.chunkerFor(chunker.MethodToken, 100, nil).Chunk(text, nil)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].StartOffset >= chunks[0].EndOffset {
		t.Error("default overlap must produce overlapping windows")
	}
}

func TestService_Query_Metadata(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	if _, err := s.Ingest(ctx, IngestRequest{ID: "doc-1", Text: "Stripping test content.", Metadata: map[string]any{"team": "core"}}); err != nil {
		t.Fatal(err)
	}
	threshold := -1.0

	// Metadata ships unless the caller opts out.
	query, err := s.Query(ctx, QueryRequest{Query: "Stripping test content.", SimilarityThreshold: &threshold})
	if err != nil {
		t.Fatal(err)
	}
	if len(query.Results) == 0 {
		t.Fatal("expected results")
	}
	if got := query.Results[0].Metadata["team"]; got != "core" {
		t.Errorf("metadata must ship by default, got %v", query.Results[0].Metadata)
	}

	include := false
	query, err = s.Query(ctx, QueryRequest{Query: "Stripping test content.", SimilarityThreshold: &threshold, IncludeMetadata: &include})
	if err != nil {
		t.Fatal(err)
	}
	if len(query.Results) == 0 {
		t.Fatal("expected results")
	}
	for _, result := range query.Results {
		if result.Metadata != nil {
			t.Errorf("metadata must be stripped on explicit opt-out, got %v", result.Metadata)
		}
	}
}

func TestService_Query_Geo(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	mustIngest := func(id, text string, lat, lon float64) {
		t.Helper()
		if _, err := s.Ingest(ctx, IngestRequest{ID: id, Text: text, Metadata: map[string]any{"lat": lat, "lon": lon}}); err != nil {
			t.Fatal(err)
		}
	}
	mustIngest("near", "A cafe near the center.", 52.5200, 13.4050)
	mustIngest("far", "A cafe in another city.", 48.8566, 2.3522)

	threshold := -1.0
	query, err := s.Query(ctx, QueryRequest{
		Query:               "cafe",
		SimilarityThreshold: &threshold,
		Geo:                 &GeoQuery{Lat: 52.5200, Lon: 13.4050, RadiusMeters: 5000},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(query.Results) != 1 || query.Results[0].DocumentID != "near" {
		t.Fatalf("expected only the nearby document, got %+v", query.Results)
	}
	if query.Results[0].DistanceMeters == nil {
		t.Error("geo results must carry distance")
	}
}

func TestBuildPrompt_Truncation(t *testing.T) {
	results := []*schema.RetrievalResult{
		{Text: strings.Repeat("a", 200), Score: 0.9},
		{Text: strings.Repeat("b", 200), Score: 0.8},
		{Text: strings.Repeat("c", 200), Score: 0.7},
	}
	prompt, included := BuildPrompt("what?", results, 400)
	if included >= 3 {
		t.Fatalf("expected truncation, included %d", included)
	}
	if included == 0 {
		t.Fatal("expected at least the top block to survive")
	}
	if !strings.Contains(prompt, strings.Repeat("a", 200)) {
		t.Error("highest ranked block must survive truncation")
	}
	if strings.Contains(prompt, strings.Repeat("c", 200)) {
		t.Error("lowest ranked block should be dropped first")
	}
	// A surviving block is always whole.
	if strings.Contains(prompt, "bbb") && !strings.Contains(prompt, strings.Repeat("b", 200)) {
		t.Error("blocks must never be cut mid-text")
	}
}

func TestBuildPrompt_NoContext(t *testing.T) {
	prompt, included := BuildPrompt("anything?", nil, 1000)
	if included != 0 {
		t.Errorf("expected zero blocks, got %d", included)
	}
	if !strings.Contains(prompt, "general knowledge") || !strings.Contains(prompt, "anything?") {
		t.Errorf("unexpected prompt %q", prompt)
	}
}
