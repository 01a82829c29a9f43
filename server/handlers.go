package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/viant/ragcore/schema"
	"github.com/viant/ragcore/service"
	"github.com/viant/ragcore/vectordb"
)

type searchRequest struct {
	Query               string         `json:"query"`
	TopK                int            `json:"top_k,omitempty"`
	SimilarityThreshold *float64       `json:"similarity_threshold,omitempty"`
	Filters             map[string]any `json:"filters,omitempty"`
	DocumentIDs         []string       `json:"document_ids,omitempty"`
	IncludeMetadata     *bool          `json:"include_metadata,omitempty"`
	MaxPromptChars      int            `json:"max_prompt_chars,omitempty"`
}

type searchGeoRequest struct {
	searchRequest
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
	Location     string   `json:"location,omitempty"`
	RadiusMeters float64  `json:"radius_m,omitempty"`
	OrderBy      string   `json:"order_by,omitempty"`
	Alpha        *float64 `json:"alpha,omitempty"`
}

type searchStats struct {
	EmbeddingMS int64 `json:"embedding_ms"`
	RetrievalMS int64 `json:"retrieval_ms"`
	PromptMS    int64 `json:"prompt_ms"`
	Retrieved   int   `json:"retrieved"`
	Included    int   `json:"included"`
	Truncated   bool  `json:"truncated"`
}

type searchResponse struct {
	Query        string                    `json:"query"`
	Results      []*schema.RetrievalResult `json:"results"`
	TotalResults int                       `json:"total_results"`
	Prompt       string                    `json:"prompt,omitempty"`
	Stats        searchStats               `json:"stats"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var request searchRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	result, err := s.service.Query(r.Context(), request.toQuery(nil))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(result))
}

func (s *Server) handleSearchGeo(w http.ResponseWriter, r *http.Request) {
	var request searchGeoRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	lat, lon, err := s.resolvePoint(r.Context(), &request)
	if err != nil {
		s.writeError(w, err)
		return
	}
	geoQuery := &service.GeoQuery{
		Lat:          lat,
		Lon:          lon,
		RadiusMeters: request.RadiusMeters,
		OrderBy:      request.OrderBy,
		Alpha:        request.Alpha,
	}
	result, err := s.service.Query(r.Context(), request.toQuery(geoQuery))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(result))
}

// resolvePoint returns explicit coordinates when supplied, otherwise geocodes
// the free-text location.
func (s *Server) resolvePoint(ctx context.Context, request *searchGeoRequest) (float64, float64, error) {
	if request.Lat != nil && request.Lon != nil {
		return *request.Lat, *request.Lon, nil
	}
	if request.Location == "" {
		return 0, 0, &vectordb.ValidationError{Reason: "either lat/lon or location is required"}
	}
	if s.geocoder == nil {
		return 0, 0, &vectordb.ValidationError{Reason: "location lookup is not configured"}
	}
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.geocoder.Lookup(lookupCtx, request.Location)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var request service.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	result, err := s.service.Ingest(r.Context(), request)
	if err != nil {
		s.writeError(w, err)
		return
	}
	documentsIngested.Inc()
	chunksStored.Add(float64(result.ChunkCount))
	writeJSON(w, http.StatusOK, result)
}

type batchIngestRequest struct {
	Documents []service.IngestRequest `json:"documents"`
}

type batchIngestResponse struct {
	DocumentIDs []string `json:"document_ids"`
	Stored      int      `json:"stored"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors,omitempty"`
}

func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	var request batchIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	result, err := s.service.BatchIngest(r.Context(), request.Documents)
	if err != nil {
		s.writeError(w, err)
		return
	}
	response := batchIngestResponse{
		DocumentIDs: result.DocumentIDs,
		Stored:      result.Stored,
		Skipped:     result.Skipped,
	}
	for _, itemErr := range result.Errors {
		response.Errors = append(response.Errors, itemErr.Error())
	}
	chunksStored.Add(float64(result.Stored))
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	document, err := s.service.Store().GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, document)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.Store().DeleteDocument(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"document_id": id, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.service.Encoder().HealthCheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	// Store probe: a not-found lookup still proves the store answers.
	if _, err := s.service.Store().GetDocument(ctx, "healthz"); err != nil && !errors.Is(err, vectordb.ErrNotFound) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r searchRequest) toQuery(geoQuery *service.GeoQuery) service.QueryRequest {
	return service.QueryRequest{
		Query:               r.Query,
		TopK:                r.TopK,
		SimilarityThreshold: r.SimilarityThreshold,
		MetadataFilters:     r.Filters,
		DocumentIDs:         r.DocumentIDs,
		IncludeMetadata:     r.IncludeMetadata,
		MaxPromptChars:      r.MaxPromptChars,
		Geo:                 geoQuery,
	}
}

func toSearchResponse(result *service.QueryResult) searchResponse {
	results := result.Results
	if results == nil {
		results = []*schema.RetrievalResult{}
	}
	return searchResponse{
		Query:        result.Query,
		Results:      results,
		TotalResults: len(results),
		Prompt:       result.Prompt,
		Stats: searchStats{
			EmbeddingMS: result.Stats.EmbeddingTime.Milliseconds(),
			RetrievalMS: result.Stats.RetrievalTime.Milliseconds(),
			PromptMS:    result.Stats.PromptTime.Milliseconds(),
			Retrieved:   result.Stats.Retrieved,
			Included:    result.Stats.Included,
			Truncated:   result.Stats.Truncated,
		},
	}
}

// writeError maps the error taxonomy onto HTTP statuses: invalid input is a
// client error, missing documents are 404, everything else is a server error.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validation *vectordb.ValidationError
	var mismatch *vectordb.DimensionMismatchError
	switch {
	case errors.As(err, &validation), errors.As(err, &mismatch):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, vectordb.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "document not found"})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
