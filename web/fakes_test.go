package web

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"nomadmatch/auth"
	"nomadmatch/database"
	apperrors "nomadmatch/errors"
	"nomadmatch/llmclient"
	"nomadmatch/rag"
	"nomadmatch/recommend"

	"github.com/google/uuid"
)

type fakeCollection struct {
	candidates []recommend.Candidate
	err        error
	ingested   []string
}

func (f *fakeCollection) SimilaritySearch(_ context.Context, _ string, k int) ([]recommend.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.candidates
	if len(out) > k {
		out = out[:k]
	}
	return append([]recommend.Candidate{}, out...), nil
}

func (f *fakeCollection) IngestCSV(_ context.Context, r io.Reader, source string) (rag.IngestResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return rag.IngestResult{}, err
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) < 2 {
		return rag.IngestResult{}, apperrors.WrapError(apperrors.ErrInvalidInput, "CSV has no data rows")
	}
	f.ingested = append(f.ingested, source)
	return rag.IngestResult{Source: source, Rows: len(lines) - 1, Processed: len(lines) - 1}, nil
}

func (f *fakeCollection) Stats(context.Context) (database.CityStats, error) {
	return database.CityStats{TotalDocs: len(f.candidates)}, nil
}

type fakeLookups struct {
	mu      sync.Mutex
	records []database.LookupRecord
}

func (f *fakeLookups) RecordLookup(_ context.Context, rec database.LookupRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeLookups) RecentLookupCities(_ context.Context, sessionID string, limit int) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := [][]string{}
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].SessionID == sessionID && f.records[i].Mode == "quick" {
			out = append(out, f.records[i].Cities)
		}
	}
	return out, nil
}

func (f *fakeLookups) DeleteLookupsBefore(context.Context, time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.records))
	f.records = nil
	return n, nil
}

type memoryPreferences struct {
	mu    sync.Mutex
	prefs map[uuid.UUID]map[string]recommend.Preference
}

func newMemoryPreferences() *memoryPreferences {
	return &memoryPreferences{prefs: make(map[uuid.UUID]map[string]recommend.Preference)}
}

func (m *memoryPreferences) ListDislikes(_ context.Context, userID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.prefs[userID] {
		if p.Action == recommend.ActionDislike {
			out = append(out, p.CityName)
		}
	}
	return out, nil
}

func (m *memoryPreferences) ListPreferences(_ context.Context, userID uuid.UUID) ([]recommend.Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recommend.Preference
	for _, p := range m.prefs[userID] {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryPreferences) UpsertPreference(_ context.Context, userID uuid.UUID, cityName string, action recommend.Action) (recommend.Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prefs[userID] == nil {
		m.prefs[userID] = make(map[string]recommend.Preference)
	}
	key := strings.ToLower(cityName)
	pref, ok := m.prefs[userID][key]
	if !ok {
		pref = recommend.Preference{UserID: userID, CityName: cityName, CreatedAt: time.Now()}
	}
	pref.Action = action
	m.prefs[userID][key] = pref
	return pref, nil
}

func (m *memoryPreferences) DeletePreference(_ context.Context, userID uuid.UUID, cityName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(cityName)
	if _, ok := m.prefs[userID][key]; !ok {
		return false, nil
	}
	delete(m.prefs[userID], key)
	return true, nil
}

type staticAdvisor struct {
	advice string
}

func (a staticAdvisor) Generate(context.Context, string, []recommend.CityDocument) (string, error) {
	return a.advice, nil
}

type flagEntitlements struct{}

func (flagEntitlements) IsPremium(_ context.Context, user recommend.User) (bool, error) {
	return user.IsPremium, nil
}

// tokenAuthenticator maps fixed bearer tokens to users.
type tokenAuthenticator map[string]recommend.User

func (t tokenAuthenticator) Authenticate(_ context.Context, token string) (recommend.User, error) {
	user, ok := t[token]
	if !ok {
		return recommend.User{}, apperrors.WrapError(apperrors.ErrUnauthorized, "unknown token")
	}
	return user, nil
}

type noAccounts struct{}

func (noAccounts) Register(context.Context, string, string) (auth.Session, error) {
	return auth.Session{}, apperrors.ErrServiceUnavailable
}

func (noAccounts) Login(context.Context, string, string) (auth.Session, error) {
	return auth.Session{}, apperrors.ErrServiceUnavailable
}

type failingChat struct {
	err   error
	calls int
}

func (f *failingChat) Chat(context.Context, string, []llmclient.Message, *float64) (string, error) {
	f.calls++
	return "", f.err
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func recordFor(sessionID string) database.LookupRecord {
	return database.LookupRecord{SessionID: sessionID, Mode: "quick", Query: "q", Cities: []string{"Lisbon"}}
}
