package recommend

import (
	"cmp"
	"math"
	"slices"
)

// RankPremium scores the full candidate set for the premium path. Every
// metadata field is kept, defaults are applied to the typed attributes and
// the list is ordered by descending raw similarity. The sort is stable, so a
// store that already returns sorted results keeps its order. At most k
// documents are returned.
func RankPremium(candidates []Candidate, k int) []CityDocument {
	docs := make([]CityDocument, 0, len(candidates))
	for _, c := range candidates {
		fields := resolveFields(c.Metadata)
		docs = append(docs, CityDocument{
			City:              fields.City,
			Country:           fields.Country,
			BudgetTier:        fields.Budget,
			InternetQuality:   fields.Internet,
			VisaFriendly:      fields.Visa,
			RawSimilarity:     c.Similarity,
			PresentationScore: PresentationScore(c.Similarity),
			Document:          c.Document,
			Metadata:          cloneMetadata(c.Metadata),
		})
	}

	slices.SortStableFunc(docs, func(a, b CityDocument) int {
		return cmp.Compare(sortKey(b.RawSimilarity), sortKey(a.RawSimilarity))
	})

	if k >= 0 && len(docs) > k {
		docs = docs[:k]
	}
	for i := range docs {
		docs[i].Rank = i + 1
	}
	return docs
}

// sortKey places NaN similarities after every real value.
func sortKey(s float64) float64 {
	if math.IsNaN(s) {
		return math.Inf(-1)
	}
	return s
}
