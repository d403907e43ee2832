package rag

import (
	"context"
	"fmt"
	"math"
	"strings"

	"nomadmatch/database"
	"nomadmatch/recommend"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// CityIndex is the persistence the store searches and ingests into.
type CityIndex interface {
	SearchCitiesByEmbedding(ctx context.Context, embedding []float32, limit int) ([]database.CityMatch, error)
	UpsertCityDocument(ctx context.Context, rec database.CityRecord) (uuid.UUID, error)
	CityDocumentExists(ctx context.Context, contentHash string) (bool, error)
	GetCityStats(ctx context.Context) (database.CityStats, error)
}

// Store answers similarity searches over embedded city documents. Query
// embeddings are cached since users repeat the same searches across the
// quick and premium paths.
type Store struct {
	index    CityIndex
	embedder Embedder
	cache    *lru.Cache
	splitter SentenceSplitter
	logger   *zap.Logger
	opts     Options
}

// Options tunes ingestion and caching.
type Options struct {
	CacheSize               int
	MaxEmbeddingChars       int
	MaxDescriptionSentences int
}

const (
	defaultCacheSize         = 512
	defaultMaxEmbeddingChars = 1000
	// CollectionName is reported by the collections endpoint.
	CollectionName = "city_documents"
)

func New(index CityIndex, embedder Embedder, logger *zap.Logger, opts Options) (*Store, error) {
	if index == nil {
		return nil, fmt.Errorf("city index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.MaxEmbeddingChars <= 0 {
		opts.MaxEmbeddingChars = defaultMaxEmbeddingChars
	}

	cache, err := lru.New(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &Store{
		index:    index,
		embedder: embedder,
		cache:    cache,
		splitter: NewProseSentenceSplitter(logger),
		logger:   logger,
		opts:     opts,
	}, nil
}

// SimilaritySearch returns up to k candidates ordered by descending
// similarity. An empty collection or no match is an empty slice.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]recommend.Candidate, error) {
	if k <= 0 {
		return []recommend.Candidate{}, nil
	}

	embedding, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.index.SearchCitiesByEmbedding(ctx, embedding, k)
	if err != nil {
		return nil, err
	}

	candidates := make([]recommend.Candidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, recommend.Candidate{
			DocumentID: m.ID.String(),
			Document:   m.Content,
			Metadata:   m.Metadata,
			Similarity: clampUnit(m.Similarity),
		})
	}

	s.logger.Debug("Similarity search completed",
		zap.Int("k", k),
		zap.Int("matches", len(candidates)))
	return candidates, nil
}

// Stats reports collection statistics.
func (s *Store) Stats(ctx context.Context) (database.CityStats, error) {
	return s.index.GetCityStats(ctx)
}

func (s *Store) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	key := normalizeQuery(query)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]float32), nil
	}

	embedding, err := s.embedder.Embed(ctx, truncateRunes(key, s.opts.MaxEmbeddingChars))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	s.cache.Add(key, embedding)
	return embedding, nil
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// clampUnit maps cosine similarity (which pgvector reports in [-1, 1]) into [0, 1].
func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func truncateRunes(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
