package recommend

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	candidates []Candidate
	err        error
	calls      int
	lastK      int
}

func (f *fakeStore) SimilaritySearch(_ context.Context, _ string, k int) ([]Candidate, error) {
	f.calls++
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type fakeAdvisor struct {
	advice   string
	err      error
	calls    int
	received []CityDocument
}

func (f *fakeAdvisor) Generate(_ context.Context, _ string, results []CityDocument) (string, error) {
	f.calls++
	f.received = results
	if f.err != nil {
		return "", f.err
	}
	return f.advice, nil
}

type flagEntitlements struct{}

func (flagEntitlements) IsPremium(_ context.Context, user User) (bool, error) {
	return user.IsPremium, nil
}

type prefKey struct {
	user uuid.UUID
	city string
}

// memoryPreferences mirrors the database semantics: one row per user and
// lowercased city, display name kept from the first write.
type memoryPreferences struct {
	mu    sync.Mutex
	rows  map[prefKey]Preference
	order []prefKey
}

func newMemoryPreferences() *memoryPreferences {
	return &memoryPreferences{rows: make(map[prefKey]Preference)}
}

func (m *memoryPreferences) ListDislikes(_ context.Context, userID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, key := range m.order {
		if p, ok := m.rows[key]; ok && key.user == userID && p.Action == ActionDislike {
			names = append(names, p.CityName)
		}
	}
	return names, nil
}

func (m *memoryPreferences) ListPreferences(_ context.Context, userID uuid.UUID) ([]Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prefs []Preference
	for _, key := range m.order {
		if p, ok := m.rows[key]; ok && key.user == userID {
			prefs = append(prefs, p)
		}
	}
	return prefs, nil
}

func (m *memoryPreferences) UpsertPreference(_ context.Context, userID uuid.UUID, cityName string, action Action) (Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := prefKey{user: userID, city: strings.ToLower(cityName)}
	if existing, ok := m.rows[key]; ok {
		existing.Action = action
		m.rows[key] = existing
		return existing, nil
	}
	p := Preference{UserID: userID, CityName: cityName, Action: action, CreatedAt: time.Now()}
	m.rows[key] = p
	m.order = append(m.order, key)
	return p, nil
}

func (m *memoryPreferences) DeletePreference(_ context.Context, userID uuid.UUID, cityName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := prefKey{user: userID, city: strings.ToLower(cityName)}
	if _, ok := m.rows[key]; !ok {
		return false, nil
	}
	delete(m.rows, key)
	return true, nil
}

func (m *memoryPreferences) count(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.rows {
		if key.user == userID {
			n++
		}
	}
	return n
}

func city(name string, sim float64) Candidate {
	return Candidate{
		Document:   name + " city profile",
		Metadata:   map[string]any{"city": name},
		Similarity: sim,
	}
}

func sampleCandidates() []Candidate {
	return []Candidate{
		city("Lisbon", 0.91),
		city("Porto", 0.75),
		city("Medellin", 0.60),
		city("Tbilisi", 0.40),
	}
}
