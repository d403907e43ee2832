package rag

import (
	"context"
	"sync"

	"nomadmatch/database"

	"github.com/google/uuid"
)

type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]database.CityRecord
	matches []database.CityMatch
	err     error
	lastK   int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]database.CityRecord)}
}

func (f *fakeIndex) SearchCitiesByEmbedding(_ context.Context, _ []float32, limit int) ([]database.CityMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastK = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.matches) > limit {
		return f.matches[:limit], nil
	}
	return f.matches, nil
}

func (f *fakeIndex) UpsertCityDocument(_ context.Context, rec database.CityRecord) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	f.docs[rec.ContentHash] = rec
	return rec.ID, nil
}

func (f *fakeIndex) CityDocumentExists(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[hash]
	return ok, nil
}

func (f *fakeIndex) GetCityStats(_ context.Context) (database.CityStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return database.CityStats{TotalDocs: len(f.docs)}, nil
}

func (f *fakeIndex) records() []database.CityRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]database.CityRecord, 0, len(f.docs))
	for _, r := range f.docs {
		out = append(out, r)
	}
	return out
}

type countingEmbedder struct {
	mu     sync.Mutex
	calls  int
	inputs []string
	err    error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.inputs = append(e.inputs, text)
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}
