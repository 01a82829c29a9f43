package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/viant/ragcore/embeddings"
	"github.com/viant/ragcore/geo"
	"github.com/viant/ragcore/service"
	"github.com/viant/ragcore/vectordb/mem"
)

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

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	encoder := embeddings.NewEncoder(&hashEmbedder{dim: 16})
	svc, err := service.New(service.DefaultConfig(),
		service.WithStore(mem.NewStore()),
		service.WithEncoder(encoder))
	if err != nil {
		t.Fatal(err)
	}
	config := service.ServerConfig{Addr: ":0", RatePerSecond: 1000, RateBurst: 1000}
	return New(svc, config, opts...)
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatal(err)
		}
	}
	request := httptest.NewRequest(method, path, &body)
	request.RemoteAddr = "10.0.0.1:1234"
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestServer_IngestAndSearch(t *testing.T) {
	router := newTestServer(t).Router()
	response := doJSON(t, router, http.MethodPost, "/ingest", map[string]any{
		"id":    "doc-1",
		"title": "Guide",
		"text":  "Berlin has many museums and galleries worth visiting.",
	})
	if response.Code != http.StatusOK {
		t.Fatalf("ingest returned %d: %s", response.Code, response.Body.String())
	}

	response = doJSON(t, router, http.MethodPost, "/search", map[string]any{
		"query":            "Berlin has many museums and galleries worth visiting.",
		"top_k":            5,
		"include_metadata": true,
	})
	if response.Code != http.StatusOK {
		t.Fatalf("search returned %d: %s", response.Code, response.Body.String())
	}
	var result struct {
		Query        string `json:"query"`
		TotalResults int    `json:"total_results"`
		Results      []struct {
			DocumentID string         `json:"document_id"`
			Content    string         `json:"content"`
			Score      float64        `json:"similarity_score"`
			Metadata   map[string]any `json:"metadata"`
		} `json:"results"`
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.TotalResults == 0 {
		t.Fatal("expected results")
	}
	if result.Results[0].DocumentID != "doc-1" {
		t.Errorf("unexpected document %q", result.Results[0].DocumentID)
	}
	if math.Abs(result.Results[0].Score-1.0) > 1e-5 {
		t.Errorf("expected similarity ~1.0, got %f", result.Results[0].Score)
	}
	if result.Prompt == "" {
		t.Error("expected a constructed prompt")
	}
}

func TestServer_Search_MetadataDefault(t *testing.T) {
	router := newTestServer(t).Router()
	response := doJSON(t, router, http.MethodPost, "/ingest", map[string]any{
		"id":       "doc-1",
		"text":     "The archive holds city records.",
		"metadata": map[string]any{"team": "core"},
	})
	if response.Code != http.StatusOK {
		t.Fatal(response.Body.String())
	}

	search := func(payload map[string]any) []struct {
		Metadata map[string]any `json:"metadata"`
	} {
		t.Helper()
		response := doJSON(t, router, http.MethodPost, "/search", payload)
		if response.Code != http.StatusOK {
			t.Fatalf("search returned %d: %s", response.Code, response.Body.String())
		}
		var result struct {
			Results []struct {
				Metadata map[string]any `json:"metadata"`
			} `json:"results"`
		}
		if err := json.Unmarshal(response.Body.Bytes(), &result); err != nil {
			t.Fatal(err)
		}
		if len(result.Results) == 0 {
			t.Fatal("expected results")
		}
		return result.Results
	}

	// A request that says nothing about metadata gets it.
	results := search(map[string]any{"query": "The archive holds city records."})
	if results[0].Metadata["team"] != "core" {
		t.Errorf("metadata must ship when include_metadata is omitted, got %v", results[0].Metadata)
	}

	results = search(map[string]any{"query": "The archive holds city records.", "include_metadata": false})
	if results[0].Metadata != nil {
		t.Errorf("metadata must be stripped on explicit opt-out, got %v", results[0].Metadata)
	}
}

func TestServer_SearchEmptyIsOK(t *testing.T) {
	router := newTestServer(t).Router()
	response := doJSON(t, router, http.MethodPost, "/search", map[string]any{"query": "nothing ingested"})
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty result set, got %d", response.Code)
	}
	var result struct {
		TotalResults int   `json:"total_results"`
		Results      []any `json:"results"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.TotalResults != 0 || result.Results == nil {
		t.Errorf("expected empty, non-null results, got %s", response.Body.String())
	}
}

func TestServer_SearchGeo(t *testing.T) {
	router := newTestServer(t).Router()
	ingest := func(id, text string, lat, lon float64) {
		response := doJSON(t, router, http.MethodPost, "/ingest", map[string]any{
			"id":       id,
			"text":     text,
			"metadata": map[string]any{"lat": lat, "lon": lon},
		})
		if response.Code != http.StatusOK {
			t.Fatalf("ingest %s returned %d", id, response.Code)
		}
	}
	ingest("near", "A riverside cafe with outdoor seats.", 52.5200, 13.4050)
	ingest("far", "A mountain lodge far away.", 47.0000, 11.0000)

	response := doJSON(t, router, http.MethodPost, "/search_geo", map[string]any{
		"query":                "cafe",
		"similarity_threshold": -1,
		"lat":                  52.5200,
		"lon":                  13.4050,
		"radius_m":             2000,
	})
	if response.Code != http.StatusOK {
		t.Fatalf("search_geo returned %d: %s", response.Code, response.Body.String())
	}
	var result struct {
		Results []struct {
			DocumentID  string   `json:"document_id"`
			DistanceM   *float64 `json:"distance_m"`
			HybridScore *float64 `json:"hybrid_score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 1 || result.Results[0].DocumentID != "near" {
		t.Fatalf("expected only the nearby document, got %s", response.Body.String())
	}
	if result.Results[0].DistanceM == nil || result.Results[0].HybridScore == nil {
		t.Error("geo results must carry distance_m and hybrid_score")
	}
}

func TestServer_SearchGeo_Location(t *testing.T) {
	geocode := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"lat":"52.5200","lon":"13.4050"}]`)
	}))
	defer geocode.Close()

	server := newTestServer(t, WithGeocoder(geo.NewGeocoder(geo.WithBaseURL(geocode.URL))))
	router := server.Router()
	response := doJSON(t, router, http.MethodPost, "/ingest", map[string]any{
		"id":       "near",
		"text":     "A bookshop near the plaza.",
		"metadata": map[string]any{"lat": 52.5201, "lon": 13.4051},
	})
	if response.Code != http.StatusOK {
		t.Fatal(response.Body.String())
	}
	response = doJSON(t, router, http.MethodPost, "/search_geo", map[string]any{
		"query":                "bookshop",
		"similarity_threshold": -1,
		"location":             "Berlin",
	})
	if response.Code != http.StatusOK {
		t.Fatalf("search_geo returned %d: %s", response.Code, response.Body.String())
	}
	if !strings.Contains(response.Body.String(), `"near"`) {
		t.Errorf("expected nearby hit, got %s", response.Body.String())
	}
}

func TestServer_SearchGeo_MissingPoint(t *testing.T) {
	router := newTestServer(t).Router()
	response := doJSON(t, router, http.MethodPost, "/search_geo", map[string]any{"query": "anything"})
	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without coordinates or location, got %d", response.Code)
	}
}

func TestServer_DeleteDocument(t *testing.T) {
	router := newTestServer(t).Router()
	response := doJSON(t, router, http.MethodPost, "/ingest", map[string]any{"id": "doc-1", "text": "short lived"})
	if response.Code != http.StatusOK {
		t.Fatal(response.Body.String())
	}
	response = doJSON(t, router, http.MethodDelete, "/documents/doc-1", nil)
	if response.Code != http.StatusOK {
		t.Fatalf("delete returned %d", response.Code)
	}
	response = doJSON(t, router, http.MethodDelete, "/documents/doc-1", nil)
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat delete, got %d", response.Code)
	}
}

func TestServer_Health(t *testing.T) {
	router := newTestServer(t).Router()
	response := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if response.Code != http.StatusOK {
		t.Fatalf("healthz returned %d: %s", response.Code, response.Body.String())
	}
}

func TestServer_IngestValidation(t *testing.T) {
	router := newTestServer(t).Router()
	response := doJSON(t, router, http.MethodPost, "/ingest", map[string]any{"text": "   "})
	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty document, got %d", response.Code)
	}
	request := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader("{not json"))
	request.RemoteAddr = "10.0.0.1:1234"
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", recorder.Code)
	}
}
