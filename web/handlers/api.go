package handlers

import (
	"context"
	"io"

	"nomadmatch/auth"
	"nomadmatch/database"
	"nomadmatch/rag"
	"nomadmatch/recommend"

	"github.com/google/uuid"
)

// Recommender is the lookup and preference surface of recommend.Service.
type Recommender interface {
	QuickLookup(ctx context.Context, message, sessionID string) (recommend.QuickResult, error)
	PremiumLookup(ctx context.Context, query string, k int, user recommend.User) (recommend.PremiumResult, error)
	SetPreference(ctx context.Context, userID uuid.UUID, cityName, action string) (recommend.Preference, error)
	ListPreferences(ctx context.Context, userID uuid.UUID) (recommend.PreferenceList, error)
	DeletePreference(ctx context.Context, userID uuid.UUID, cityName string) error
}

// CityCollection is the document store as seen by the collection endpoints.
type CityCollection interface {
	recommend.DocumentStore
	IngestCSV(ctx context.Context, r io.Reader, source string) (rag.IngestResult, error)
	Stats(ctx context.Context) (database.CityStats, error)
}

// LookupLog records served lookups.
type LookupLog interface {
	RecordLookup(ctx context.Context, rec database.LookupRecord) error
	RecentLookupCities(ctx context.Context, sessionID string, limit int) ([][]string, error)
}

// Accounts registers and signs in users.
type Accounts interface {
	Register(ctx context.Context, email, password string) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
