package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// CityRecord is one embedded city document.
type CityRecord struct {
	ID          uuid.UUID
	Content     string
	Metadata    map[string]any
	ContentHash string
	Source      string
	Embedding   []float32
}

// CityMatch is a similarity search hit.
type CityMatch struct {
	ID         uuid.UUID
	Content    string
	Metadata   map[string]any
	Similarity float64
}

// CityStats summarizes the city collection.
type CityStats struct {
	TotalDocs int `json:"total_docs"`
	Countries int `json:"countries"`
	Sources   int `json:"sources"`
}

// UpsertCityDocument stores a city document, replacing content, metadata and
// embedding when a document with the same content hash already exists.
// Returns the id of the stored row.
func (s *PostgresStore) UpsertCityDocument(ctx context.Context, rec CityRecord) (uuid.UUID, error) {
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal metadata for city document: %w", err)
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	hashValue := sql.NullString{String: rec.ContentHash, Valid: rec.ContentHash != ""}

	const query = `
        INSERT INTO city_documents (id, content, metadata, content_hash, source, embedding, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        ON CONFLICT (content_hash)
        DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata,
                      source = EXCLUDED.source, embedding = EXCLUDED.embedding
        RETURNING id
    `

	var id uuid.UUID
	err = s.DB.QueryRowContext(ctx, query,
		rec.ID,
		rec.Content,
		string(metaJSON),
		hashValue,
		rec.Source,
		pgvector.NewVector(rec.Embedding),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert city document: %w", err)
	}
	return id, nil
}

// CityDocumentExists reports whether a document with the given content hash is stored.
func (s *PostgresStore) CityDocumentExists(ctx context.Context, contentHash string) (bool, error) {
	if contentHash == "" {
		return false, nil
	}
	var id uuid.UUID
	err := s.DB.QueryRowContext(ctx, `SELECT id FROM city_documents WHERE content_hash = $1`, contentHash).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to lookup city document by hash: %w", err)
	}
	return true, nil
}

// SearchCitiesByEmbedding returns up to limit documents ordered by descending
// cosine similarity to embedding. No rows is an empty slice.
func (s *PostgresStore) SearchCitiesByEmbedding(ctx context.Context, embedding []float32, limit int) ([]CityMatch, error) {
	if limit <= 0 {
		return []CityMatch{}, nil
	}

	const query = `
        SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
        FROM city_documents
        ORDER BY embedding <=> $1
        LIMIT $2
    `

	rows, err := s.DB.QueryContext(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query city documents: %w", err)
	}
	defer rows.Close()

	matches := make([]CityMatch, 0, limit)
	for rows.Next() {
		var (
			m        CityMatch
			metaJSON []byte
		)
		if err := rows.Scan(&m.ID, &m.Content, &metaJSON, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan city document row: %w", err)
		}
		m.Metadata = decodeMetadata(metaJSON)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating city document rows: %w", err)
	}
	return matches, nil
}

// GetCityStats counts stored documents, distinct countries and sources.
func (s *PostgresStore) GetCityStats(ctx context.Context) (CityStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(DISTINCT NULLIF(metadata ->> 'country', '')),
               COUNT(DISTINCT NULLIF(source, ''))
        FROM city_documents
    `
	var stats CityStats
	if err := s.DB.QueryRowContext(ctx, query).Scan(&stats.TotalDocs, &stats.Countries, &stats.Sources); err != nil {
		return CityStats{}, fmt.Errorf("failed to read city stats: %w", err)
	}
	return stats, nil
}

// decodeMetadata unmarshals a JSONB metadata column. Malformed JSON yields an
// empty map so that callers fall back to field defaults.
func decodeMetadata(raw []byte) map[string]any {
	meta := make(map[string]any)
	if len(raw) == 0 {
		return meta
	}
	if err := json.Unmarshal(raw, &meta); err != nil || meta == nil {
		return make(map[string]any)
	}
	return meta
}
