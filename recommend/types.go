package recommend

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action is a user's judgment on a city.
type Action string

const (
	ActionLike    Action = "like"
	ActionDislike Action = "dislike"
)

// Candidate is one hit returned by a similarity search, before any filtering.
type Candidate struct {
	DocumentID string         `json:"document_id,omitempty"`
	Document   string         `json:"document"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity_score"`
}

// CitySummary is the compact record returned by the quick path.
type CitySummary struct {
	City     string  `json:"city"`
	Country  string  `json:"country"`
	Budget   string  `json:"budget"`
	Internet string  `json:"internet"`
	Visa     string  `json:"visa"`
	Score    float64 `json:"score"`
}

// CityDocument is the full record returned by the premium path. Metadata keeps
// every field the store returned; the typed fields have defaults applied.
type CityDocument struct {
	// Rank is the 1-based position in the store's result list, assigned
	// before disliked cities are dropped, so filtered results can skip ranks.
	Rank              int            `json:"rank"`
	City              string         `json:"city"`
	Country           string         `json:"country"`
	BudgetTier        string         `json:"budget"`
	InternetQuality   string         `json:"internet"`
	VisaFriendly      string         `json:"visa"`
	RawSimilarity     float64        `json:"similarity_score"`
	PresentationScore float64        `json:"score"`
	Document          string         `json:"document"`
	Metadata          map[string]any `json:"metadata"`
}

// Preference is a persisted like/dislike for one (user, city) pair.
type Preference struct {
	UserID    uuid.UUID `json:"user_id"`
	CityName  string    `json:"city_name"`
	Action    Action    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// PreferenceList groups a user's preferences by action.
type PreferenceList struct {
	UserID      uuid.UUID    `json:"user_id"`
	Preferences []Preference `json:"preferences"`
	Likes       []string     `json:"likes"`
	Dislikes    []string     `json:"dislikes"`
}

// User is the caller identity the premium path is evaluated for.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	IsPremium bool      `json:"is_premium"`
}

// QuickResult is the response of QuickLookup.
type QuickResult struct {
	Summary   string        `json:"response"`
	SessionID string        `json:"session_id"`
	Cities    []CitySummary `json:"cities"`
}

// PremiumResult is the response of PremiumLookup.
type PremiumResult struct {
	Results []CityDocument `json:"results"`
	Query   string         `json:"query"`
	Count   int            `json:"count"`
	Advice  string         `json:"advice"`
}

// DocumentStore returns candidates ordered by descending similarity. Zero
// matches is an empty slice, never an error.
type DocumentStore interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Candidate, error)
}

// PreferenceStore persists per-user city preferences.
type PreferenceStore interface {
	ListDislikes(ctx context.Context, userID uuid.UUID) ([]string, error)
	ListPreferences(ctx context.Context, userID uuid.UUID) ([]Preference, error)
	UpsertPreference(ctx context.Context, userID uuid.UUID, cityName string, action Action) (Preference, error)
	DeletePreference(ctx context.Context, userID uuid.UUID, cityName string) (bool, error)
}

// AdviceGenerator writes free-text advice for a query and its ranked results.
type AdviceGenerator interface {
	Generate(ctx context.Context, query string, results []CityDocument) (string, error)
}

// EntitlementChecker reports whether a user may use the premium path.
type EntitlementChecker interface {
	IsPremium(ctx context.Context, user User) (bool, error)
}
