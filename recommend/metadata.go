package recommend

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// metadataField describes one typed city attribute: the metadata keys it may
// be read from, in priority order, and the value used when none is usable.
type metadataField struct {
	keys     []string
	fallback string
}

var (
	fieldCity     = metadataField{keys: []string{"city", "city_name", "name"}, fallback: "Unknown"}
	fieldCountry  = metadataField{keys: []string{"country"}, fallback: ""}
	fieldBudget   = metadataField{keys: []string{"budget", "budget_tier"}, fallback: "Moderate"}
	fieldInternet = metadataField{keys: []string{"internet", "internet_quality"}, fallback: "Good"}
	fieldVisa     = metadataField{keys: []string{"visa", "visa_friendly"}, fallback: "No"}
)

// cityFields holds the defaulted attributes shared by both result shapes.
type cityFields struct {
	City     string
	Country  string
	Budget   string
	Internet string
	Visa     string
}

func resolveFields(metadata map[string]any) cityFields {
	return cityFields{
		City:     fieldCity.resolve(metadata),
		Country:  fieldCountry.resolve(metadata),
		Budget:   fieldBudget.resolve(metadata),
		Internet: fieldInternet.resolve(metadata),
		Visa:     fieldVisa.resolve(metadata),
	}
}

func (f metadataField) resolve(metadata map[string]any) string {
	for _, key := range f.keys {
		if value, ok := metadataString(metadata[key]); ok {
			return value
		}
	}
	return f.fallback
}

// metadataString renders a metadata value as display text. Blank strings and
// values of unsupported types are reported as unusable.
func metadataString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return metadataString(float64(v))
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case json.Number:
		return metadataString(v.String())
	case bool:
		if v {
			return "Yes", true
		}
		return "No", true
	default:
		return "", false
	}
}

// PresentationScore maps a raw similarity onto the 0-100 display scale,
// rounded half away from zero to one decimal place.
func PresentationScore(rawSimilarity float64) float64 {
	return math.Round(clampSimilarity(rawSimilarity)*1000) / 10
}

func clampSimilarity(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

func cloneMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
