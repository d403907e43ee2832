package recommend

import "strings"

// DislikeSet holds disliked city names by their comparison key.
type DislikeSet map[string]struct{}

// NewDislikeSet builds a set from stored city names. The names themselves
// are not modified; only the derived key is lowercased.
func NewDislikeSet(names []string) DislikeSet {
	set := make(DislikeSet, len(names))
	for _, name := range names {
		if key := cityKey(name); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

// Contains reports whether city matches a disliked name, ignoring case.
func (s DislikeSet) Contains(city string) bool {
	_, ok := s[cityKey(city)]
	return ok
}

// FilterDisliked drops documents whose city is in dislikes, keeping the
// relative order of the rest. An empty set returns docs untouched.
func FilterDisliked(docs []CityDocument, dislikes DislikeSet) []CityDocument {
	if len(dislikes) == 0 {
		return docs
	}

	kept := make([]CityDocument, 0, len(docs))
	for _, doc := range docs {
		if dislikes.Contains(doc.City) {
			continue
		}
		kept = append(kept, doc)
	}
	return kept
}

func cityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
