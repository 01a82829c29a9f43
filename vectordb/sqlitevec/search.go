package sqlitevec

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/viant/sqlite-vec/vector"

	"github.com/viant/ragcore/embeddings"
	"github.com/viant/ragcore/geo"
	"github.com/viant/ragcore/schema"
	"github.com/viant/ragcore/vectordb"
)

// Search performs a MATCH query over the vec virtual table, over-fetching
// candidates so that metadata filters applied post-ANN still fill topK.
func (s *Store) Search(ctx context.Context, request vectordb.SearchRequest) ([]*schema.RetrievalResult, error) {
	topK := request.TopK
	if topK <= 0 {
		topK = vectordb.DefaultTopK
	}
	blob, err := vector.EncodeEmbedding(request.Embedding)
	if err != nil {
		return nil, &vectordb.StorageError{Op: "encode query", Err: err}
	}
	candidates := topK
	if len(request.MetadataFilters) > 0 || len(request.DocumentIDs) > 0 {
		candidates = topK * 4
		if candidates < 32 {
			candidates = 32
		}
	}
	query := `SELECT d.id, d.document_id, d.content, d.meta, v.match_score
FROM ` + s.vtable + ` v
JOIN ` + s.shadow + ` d ON d.dataset_id = v.dataset_id AND d.id = v.doc_id
WHERE v.dataset_id = ?
  AND v.doc_id MATCH ?
  AND d.archived = 0
ORDER BY v.match_score DESC
LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, defaultDataset, blob, candidates)
	if err != nil && isMissingVecErr(err) {
		return s.fallbackSearch(ctx, request, topK)
	}
	if err != nil {
		return nil, &vectordb.StorageError{Op: "search", Err: err}
	}
	defer rows.Close()

	allowed := documentSet(request.DocumentIDs)
	var results []*schema.RetrievalResult
	for rows.Next() {
		var chunkID, documentID, content, metaJSON string
		var score float64
		if err := rows.Scan(&chunkID, &documentID, &content, &metaJSON, &score); err != nil {
			return nil, &vectordb.StorageError{Op: "scan result", Err: err}
		}
		// Rows are ordered by score, so anything at or below the threshold
		// ends the scan.
		if score <= request.SimilarityThreshold {
			break
		}
		if allowed != nil && !allowed[documentID] {
			continue
		}
		meta, err := decodeMeta(metaJSON)
		if err != nil {
			return nil, &vectordb.StorageError{Op: "decode meta", Err: err}
		}
		if !vectordb.MatchesFilters(meta, request.MetadataFilters) {
			continue
		}
		results = append(results, &schema.RetrievalResult{
			ChunkID:    chunkID,
			DocumentID: documentID,
			Text:       content,
			Score:      score,
			Metadata:   meta,
		})
		if len(results) == topK {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &vectordb.StorageError{Op: "search rows", Err: err}
	}
	return results, nil
}

// fallbackSearch scans the shadow table and scores in process, used when the
// vec module is unavailable on this connection.
func (s *Store) fallbackSearch(ctx context.Context, request vectordb.SearchRequest, topK int) ([]*schema.RetrievalResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, content, meta, embedding FROM `+s.shadow+` WHERE archived = 0`)
	if err != nil {
		return nil, &vectordb.StorageError{Op: "fallback search", Err: err}
	}
	defer rows.Close()

	allowed := documentSet(request.DocumentIDs)
	var results []*schema.RetrievalResult
	for rows.Next() {
		var chunkID, documentID, content, metaJSON string
		var blob []byte
		if err := rows.Scan(&chunkID, &documentID, &content, &metaJSON, &blob); err != nil {
			return nil, &vectordb.StorageError{Op: "scan row", Err: err}
		}
		if allowed != nil && !allowed[documentID] {
			continue
		}
		embedding, err := vector.DecodeEmbedding(blob)
		if err != nil {
			continue
		}
		score := embeddings.Cosine(request.Embedding, embedding)
		if score <= request.SimilarityThreshold {
			continue
		}
		meta, err := decodeMeta(metaJSON)
		if err != nil {
			return nil, &vectordb.StorageError{Op: "decode meta", Err: err}
		}
		if !vectordb.MatchesFilters(meta, request.MetadataFilters) {
			continue
		}
		results = append(results, &schema.RetrievalResult{
			ChunkID:    chunkID,
			DocumentID: documentID,
			Text:       content,
			Score:      score,
			Metadata:   meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &vectordb.StorageError{Op: "fallback rows", Err: err}
	}
	return vectordb.RankResults(results, vectordb.OrderSimilarity, topK), nil
}

// SearchWithinRadius pre-filters candidates with a bounding box over the
// spatial index, then applies exact great-circle distance, similarity and
// metadata filters in process.
func (s *Store) SearchWithinRadius(ctx context.Context, request vectordb.GeoSearchRequest) ([]*schema.RetrievalResult, error) {
	topK := request.TopK
	if topK <= 0 {
		topK = vectordb.DefaultTopK
	}
	radius := request.RadiusMeters
	if radius <= 0 {
		radius = vectordb.DefaultRadiusMeters
	}
	orderBy := request.OrderBy
	if orderBy == "" {
		orderBy = vectordb.OrderHybrid
	}
	minLat, maxLat, minLon, maxLon := boundingBox(request.Lat, request.Lon, radius)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, content, meta, embedding, lat, lon FROM `+s.shadow+`
WHERE archived = 0 AND lat IS NOT NULL
  AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`,
		minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, &vectordb.StorageError{Op: "geo search", Err: err}
	}
	defer rows.Close()

	allowed := documentSet(request.DocumentIDs)
	var results []*schema.RetrievalResult
	for rows.Next() {
		var chunkID, documentID, content, metaJSON string
		var blob []byte
		var lat, lon float64
		if err := rows.Scan(&chunkID, &documentID, &content, &metaJSON, &blob, &lat, &lon); err != nil {
			return nil, &vectordb.StorageError{Op: "scan row", Err: err}
		}
		if allowed != nil && !allowed[documentID] {
			continue
		}
		distance := geo.Distance(request.Lat, request.Lon, lat, lon)
		if distance > radius {
			continue
		}
		embedding, err := vector.DecodeEmbedding(blob)
		if err != nil {
			continue
		}
		score := embeddings.Cosine(request.Embedding, embedding)
		if score <= request.SimilarityThreshold {
			continue
		}
		meta, err := decodeMeta(metaJSON)
		if err != nil {
			return nil, &vectordb.StorageError{Op: "decode meta", Err: err}
		}
		if !vectordb.MatchesFilters(meta, request.MetadataFilters) {
			continue
		}
		result := &schema.RetrievalResult{
			ChunkID:    chunkID,
			DocumentID: documentID,
			Text:       content,
			Score:      score,
			Metadata:   meta,
		}
		d := distance
		result.DistanceMeters = &d
		if orderBy == vectordb.OrderHybrid {
			hybrid := vectordb.HybridScore(score, distance, radius, request.Alpha)
			result.HybridScore = &hybrid
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, &vectordb.StorageError{Op: "geo rows", Err: err}
	}
	return vectordb.RankResults(results, orderBy, topK), nil
}

// boundingBox returns a lat/lon window that encloses the radius around the
// center; the exact haversine check prunes the corners.
func boundingBox(lat, lon, radiusMeters float64) (minLat, maxLat, minLon, maxLon float64) {
	const metersPerDegree = 111320.0
	dLat := radiusMeters / metersPerDegree
	cos := math.Cos(lat * math.Pi / 180)
	dLon := 180.0
	if cos > 1e-6 {
		dLon = radiusMeters / (metersPerDegree * cos)
	}
	return lat - dLat, lat + dLat, lon - dLon, lon + dLon
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

func decodeMeta(metaJSON string) (map[string]any, error) {
	if metaJSON == "" {
		return map[string]any{}, nil
	}
	meta := map[string]any{}
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func isMissingVecErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such module: vec") ||
		strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "unable to use function MATCH")
}
