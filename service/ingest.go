package service

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/ragcore/schema"
	"github.com/viant/ragcore/vectordb"
)

// IngestRequest describes one document to ingest. Either Text or Data must be
// set; Data is run through the file-type extractor resolved from Path. A nil
// Overlap uses the configured default; an explicit zero disables window
// overlap.
type IngestRequest struct {
	ID             string         `json:"id,omitempty"`
	Title          string         `json:"title,omitempty"`
	Source         string         `json:"source,omitempty"`
	Language       string         `json:"language,omitempty"`
	Text           string         `json:"text"`
	Path           string         `json:"path,omitempty"`
	Data           []byte         `json:"-"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ChunkingMethod string         `json:"chunking_method,omitempty"`
	ChunkSize      int            `json:"chunk_size,omitempty"`
	Overlap        *int           `json:"overlap,omitempty"`
}

// IngestResult reports the outcome of one document ingestion.
type IngestResult struct {
	DocumentID string        `json:"document_id"`
	ChunkCount int           `json:"chunk_count"`
	Skipped    int           `json:"skipped,omitempty"`
	Updated    bool          `json:"updated,omitempty"`
	Elapsed    time.Duration `json:"-"`
}

// BatchIngestResult aggregates a batch run. DocumentIDs is positional with
// the input; a failed item holds an empty id and contributes to Errors.
type BatchIngestResult struct {
	DocumentIDs []string `json:"document_ids"`
	Stored      int      `json:"stored"`
	Skipped     int      `json:"skipped"`
	Errors      []error  `json:"-"`
}

// Ingest chunks, embeds and stores one document. The whole document either
// lands or is rejected; dedup skips are reported, not errored.
func (s *Service) Ingest(ctx context.Context, request IngestRequest) (*IngestResult, error) {
	started := time.Now()
	text := request.Text
	if text == "" && len(request.Data) > 0 {
		extracted, err := s.extractors.Extractor(request.Path).Extract(request.Data)
		if err != nil {
			return nil, &vectordb.ValidationError{Reason: fmt.Sprintf("extract %s: %v", request.Path, err)}
		}
		text = extracted
	}

	c := s.chunkerFor(request.ChunkingMethod, request.ChunkSize, request.Overlap)
	chunks := c.Chunk(text, request.Metadata)
	if len(chunks) == 0 {
		return nil, &vectordb.ValidationError{Reason: "document produced no chunks"}
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, err := s.encoder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, &vectordb.DimensionMismatchError{Got: len(embeddings), Want: len(chunks), Kind: "count"}
	}

	stored, err := s.store.Store(ctx, vectordb.StoreRequest{
		Document: schema.Document{
			ID:       request.ID,
			Title:    request.Title,
			Source:   request.Source,
			Language: request.Language,
			Metadata: request.Metadata,
		},
		Chunks:     chunks,
		Embeddings: embeddings,
	})
	if err != nil {
		return nil, err
	}
	result := &IngestResult{
		DocumentID: stored.DocumentID,
		ChunkCount: stored.Stored,
		Skipped:    stored.Skipped,
		Updated:    stored.Updated,
		Elapsed:    time.Since(started),
	}
	s.logger.Info("document ingested",
		"document_id", result.DocumentID,
		"chunks", result.ChunkCount,
		"skipped", result.Skipped,
		"updated", result.Updated,
		"elapsed", result.Elapsed)
	return result, nil
}

// BatchIngest processes documents sequentially; a failure on one item does
// not abort the rest.
func (s *Service) BatchIngest(ctx context.Context, requests []IngestRequest) (*BatchIngestResult, error) {
	result := &BatchIngestResult{DocumentIDs: make([]string, len(requests))}
	for i, request := range requests {
		item, err := s.Ingest(ctx, request)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("document %d: %w", i, err))
			s.logger.Warn("batch item failed", "index", i, "error", err)
			continue
		}
		result.DocumentIDs[i] = item.DocumentID
		result.Stored += item.ChunkCount
		result.Skipped += item.Skipped
	}
	return result, nil
}
