package vectordb

import (
	"sort"
	"strings"

	"github.com/viant/ragcore/schema"
)

// Metadata filter key suffixes for numeric range constraints:
// capacity_min=50 means metadata.capacity >= 50.
const (
	minSuffix = "_min"
	maxSuffix = "_max"
)

// MatchesFilters reports whether metadata satisfies all filters. String and
// boolean filters require exact equality, numeric filters equality after
// float coercion, and _min/_max suffixed keys numeric range bounds on the
// base field.
func MatchesFilters(metadata map[string]any, filters map[string]any) bool {
	for key, want := range filters {
		if field, ok := strings.CutSuffix(key, minSuffix); ok {
			if !rangeSatisfied(metadata, field, want, false) {
				return false
			}
			continue
		}
		if field, ok := strings.CutSuffix(key, maxSuffix); ok {
			if !rangeSatisfied(metadata, field, want, true) {
				return false
			}
			continue
		}
		got, ok := metadata[key]
		if !ok {
			return false
		}
		if !equalValue(got, want) {
			return false
		}
	}
	return true
}

func rangeSatisfied(metadata map[string]any, field string, bound any, upper bool) bool {
	value, ok := schema.GetFloat(metadata, field)
	if !ok {
		return false
	}
	limit, ok := toFloat(bound)
	if !ok {
		return false
	}
	if upper {
		return value <= limit
	}
	return value >= limit
}

func equalValue(got, want any) bool {
	if gotText, ok := got.(string); ok {
		wantText, ok := want.(string)
		return ok && gotText == wantText
	}
	if gotBool, ok := got.(bool); ok {
		wantBool, ok := want.(bool)
		return ok && gotBool == wantBool
	}
	gotNum, gotOK := toFloat(got)
	wantNum, wantOK := toFloat(want)
	if gotOK && wantOK {
		return gotNum == wantNum
	}
	return false
}

func toFloat(value any) (float64, bool) {
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

// HybridScore blends similarity with normalized proximity: distance is
// scaled to [0,1] over the search radius and inverted so that closer is
// better, then linearly mixed with similarity using weight alpha.
func HybridScore(similarity, distanceMeters, radiusMeters, alpha float64) float64 {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	normalized := 1.0
	if radiusMeters > 0 {
		normalized = distanceMeters / radiusMeters
		if normalized > 1 {
			normalized = 1
		}
	}
	return alpha*similarity + (1-alpha)*(1-normalized)
}

// RankResults orders results in place per orderBy and truncates to topK.
func RankResults(results []*schema.RetrievalResult, orderBy string, topK int) []*schema.RetrievalResult {
	switch orderBy {
	case OrderDistance:
		sort.SliceStable(results, func(i, j int) bool {
			return derefDistance(results[i]) < derefDistance(results[j])
		})
	case OrderHybrid:
		sort.SliceStable(results, func(i, j int) bool {
			return derefHybrid(results[i]) > derefHybrid(results[j])
		})
	default:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
	}
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

func derefDistance(r *schema.RetrievalResult) float64 {
	if r.DistanceMeters == nil {
		return 0
	}
	return *r.DistanceMeters
}

func derefHybrid(r *schema.RetrievalResult) float64 {
	if r.HybridScore == nil {
		return r.Score
	}
	return *r.HybridScore
}
