package recommend

// QuickLimit is the number of cities the quick path returns.
const QuickLimit = 3

// Summarize turns the first limit candidates into compact city summaries.
// Input order is kept; the store already returns descending similarity.
func Summarize(candidates []Candidate, limit int) []CitySummary {
	if limit < 0 {
		limit = 0
	}
	n := min(len(candidates), limit)

	cities := make([]CitySummary, 0, n)
	for _, c := range candidates[:n] {
		fields := resolveFields(c.Metadata)
		cities = append(cities, CitySummary{
			City:     fields.City,
			Country:  fields.Country,
			Budget:   fields.Budget,
			Internet: fields.Internet,
			Visa:     fields.Visa,
			Score:    PresentationScore(c.Similarity),
		})
	}
	return cities
}
