package recommend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresentationScore(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"high", 0.91, 91.0},
		{"rounds_half_away_from_zero", 0.12345, 12.3},
		{"rounds_up", 0.12355, 12.4},
		{"zero", 0, 0},
		{"one", 1, 100},
		{"negative_clamped", -0.2, 0},
		{"above_one_clamped", 1.7, 100},
		{"nan", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PresentationScore(tt.raw), 1e-9)
		})
	}
}

func TestPresentationScoreStaysInRange(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		s := float64(i) / 1000
		score := PresentationScore(s)
		require.GreaterOrEqual(t, score, 0.0)
		require.LessOrEqual(t, score, 100.0)
		assert.InDelta(t, math.Round(s*1000)/10, score, 1e-9, "raw=%v", s)
	}
}

func TestSummarizeKeepsOrderAndTruncates(t *testing.T) {
	cities := Summarize(sampleCandidates(), QuickLimit)

	require.Len(t, cities, 3)
	assert.Equal(t, "Lisbon", cities[0].City)
	assert.Equal(t, 91.0, cities[0].Score)
	assert.Equal(t, "Porto", cities[1].City)
	assert.Equal(t, "Medellin", cities[2].City)
}

func TestSummarizeAppliesDefaults(t *testing.T) {
	candidates := []Candidate{
		{Metadata: nil, Similarity: 0.5},
		{Metadata: map[string]any{"city": "  ", "budget": []int{1}, "internet": 95.0, "visa": true, "country": "Peru"}, Similarity: 0.4},
	}

	cities := Summarize(candidates, QuickLimit)

	require.Len(t, cities, 2)
	assert.Equal(t, CitySummary{City: "Unknown", Country: "", Budget: "Moderate", Internet: "Good", Visa: "No", Score: 50}, cities[0])
	assert.Equal(t, "Unknown", cities[1].City)
	assert.Equal(t, "Peru", cities[1].Country)
	assert.Equal(t, "Moderate", cities[1].Budget)
	assert.Equal(t, "95", cities[1].Internet)
	assert.Equal(t, "Yes", cities[1].Visa)
}

func TestSummarizeReadsAliasKeys(t *testing.T) {
	cities := Summarize([]Candidate{{
		Metadata: map[string]any{"city_name": "Da Nang", "budget_tier": "Budget", "internet_quality": "Excellent", "visa_friendly": "Yes"},
	}}, QuickLimit)

	require.Len(t, cities, 1)
	assert.Equal(t, "Da Nang", cities[0].City)
	assert.Equal(t, "Budget", cities[0].Budget)
	assert.Equal(t, "Excellent", cities[0].Internet)
	assert.Equal(t, "Yes", cities[0].Visa)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Empty(t, Summarize(nil, QuickLimit))
	assert.Empty(t, Summarize(sampleCandidates(), -1))
}
