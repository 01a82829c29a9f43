package service

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/ragcore/schema"
	"github.com/viant/ragcore/vectordb"
)

// GeoQuery constrains a query to a radius around a point.
type GeoQuery struct {
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	RadiusMeters float64  `json:"radius_m,omitempty"`
	OrderBy      string   `json:"order_by,omitempty"`
	Alpha        *float64 `json:"alpha,omitempty"`
}

// QueryRequest describes one retrieval query. Pointer fields distinguish
// "not supplied, use the configured default" from an explicit zero.
type QueryRequest struct {
	Query               string         `json:"query"`
	TopK                int            `json:"top_k,omitempty"`
	SimilarityThreshold *float64       `json:"similarity_threshold,omitempty"`
	MetadataFilters     map[string]any `json:"filters,omitempty"`
	DocumentIDs         []string       `json:"document_ids,omitempty"`
	IncludeMetadata     *bool          `json:"include_metadata,omitempty"`
	MaxPromptChars      int            `json:"max_prompt_chars,omitempty"`
	Geo                 *GeoQuery      `json:"geo,omitempty"`
}

// QueryStats carries the per-stage timing breakdown of one query.
type QueryStats struct {
	EmbeddingTime time.Duration `json:"-"`
	RetrievalTime time.Duration `json:"-"`
	PromptTime    time.Duration `json:"-"`
	Retrieved     int           `json:"retrieved"`
	Included      int           `json:"included"`
	Truncated     bool          `json:"truncated"`
}

// QueryResult is the outcome of one query: the ranked context chunks and the
// grounded prompt built from them.
type QueryResult struct {
	Query   string                    `json:"query"`
	Results []*schema.RetrievalResult `json:"results"`
	Prompt  string                    `json:"prompt"`
	Stats   QueryStats                `json:"stats"`
}

// Query embeds the query text, searches the store and builds a token-budgeted
// prompt from the ranked context.
func (s *Service) Query(ctx context.Context, request QueryRequest) (*QueryResult, error) {
	if request.Query == "" {
		return nil, &vectordb.ValidationError{Reason: "query text is required"}
	}
	topK := request.TopK
	if topK <= 0 {
		topK = s.config.Retrieval.TopK
	}
	threshold := 0.0
	if s.config.Retrieval.SimilarityThreshold != nil {
		threshold = *s.config.Retrieval.SimilarityThreshold
	}
	if request.SimilarityThreshold != nil {
		threshold = *request.SimilarityThreshold
	}
	maxChars := request.MaxPromptChars
	if maxChars <= 0 {
		maxChars = s.config.Retrieval.MaxPromptChars
	}

	embedStart := time.Now()
	embedding, err := s.encoder.EmbedQuery(ctx, request.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	embedElapsed := time.Since(embedStart)

	searchRequest := vectordb.SearchRequest{
		Embedding:           embedding,
		TopK:                topK,
		SimilarityThreshold: threshold,
		MetadataFilters:     request.MetadataFilters,
		DocumentIDs:         request.DocumentIDs,
	}
	searchStart := time.Now()
	var results []*schema.RetrievalResult
	if request.Geo != nil {
		alpha := s.config.Retrieval.Alpha
		if request.Geo.Alpha != nil {
			alpha = *request.Geo.Alpha
		}
		radius := request.Geo.RadiusMeters
		if radius <= 0 {
			radius = s.config.Retrieval.RadiusMeters
		}
		results, err = s.store.SearchWithinRadius(ctx, vectordb.GeoSearchRequest{
			SearchRequest: searchRequest,
			Lat:           request.Geo.Lat,
			Lon:           request.Geo.Lon,
			RadiusMeters:  radius,
			OrderBy:       request.Geo.OrderBy,
			Alpha:         alpha,
		})
	} else {
		results, err = s.store.Search(ctx, searchRequest)
	}
	if err != nil {
		return nil, err
	}
	searchElapsed := time.Since(searchStart)

	promptStart := time.Now()
	prompt, included := BuildPrompt(request.Query, results, maxChars)
	promptElapsed := time.Since(promptStart)

	// Metadata ships by default; only an explicit opt-out strips it.
	if request.IncludeMetadata != nil && !*request.IncludeMetadata {
		for _, result := range results {
			result.Metadata = nil
		}
	}

	result := &QueryResult{
		Query:   request.Query,
		Results: results,
		Prompt:  prompt,
		Stats: QueryStats{
			EmbeddingTime: embedElapsed,
			RetrievalTime: searchElapsed,
			PromptTime:    promptElapsed,
			Retrieved:     len(results),
			Included:      included,
			Truncated:     included < len(results),
		},
	}
	s.logger.Info("query processed",
		"retrieved", len(results),
		"included", included,
		"embedding_ms", embedElapsed.Milliseconds(),
		"retrieval_ms", searchElapsed.Milliseconds(),
		"prompt_ms", promptElapsed.Milliseconds())
	return result, nil
}
