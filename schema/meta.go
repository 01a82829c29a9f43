package schema

// Metadata keys shared across ingestion and retrieval.
const (
	MetaDocumentID = "document_id"
	MetaTitle      = "title"
	MetaSource     = "source"
	MetaLanguage   = "language"
	MetaOrdinal    = "chunk_index"
	MetaMethod     = "chunking_method"
	MetaLat        = "lat"
	MetaLon        = "lon"
)

// GetString returns metadata[key] when it holds a string.
func GetString(metadata map[string]any, key string) string {
	if value, ok := metadata[key]; ok {
		text, _ := value.(string)
		return text
	}
	return ""
}

// GetFloat returns metadata[key] coerced to float64 when it holds a numeric
// value, with ok reporting whether the coercion succeeded.
func GetFloat(metadata map[string]any, key string) (float64, bool) {
	value, ok := metadata[key]
	if !ok {
		return 0, false
	}
	switch actual := value.(type) {
	case float64:
		return actual, true
	case float32:
		return float64(actual), true
	case int:
		return float64(actual), true
	case int64:
		return float64(actual), true
	}
	return 0, false
}

// GeoPointFromMetadata derives an optional geo point from lat/lon metadata.
func GeoPointFromMetadata(metadata map[string]any) *GeoPoint {
	lat, okLat := GetFloat(metadata, MetaLat)
	lon, okLon := GetFloat(metadata, MetaLon)
	if !okLat || !okLon {
		return nil
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil
	}
	return &GeoPoint{Lat: lat, Lon: lon}
}
