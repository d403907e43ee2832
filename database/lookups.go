package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// LookupRecord is one logged recommendation request.
type LookupRecord struct {
	SessionID string
	UserID    *uuid.UUID
	Mode      string
	Query     string
	Cities    []string
}

// RecordLookup stores a recommendation request and the cities it returned.
func (s *PostgresStore) RecordLookup(ctx context.Context, rec LookupRecord) error {
	const query = `
        INSERT INTO lookups (id, session_id, user_id, mode, query, cities, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
    `
	cities := rec.Cities
	if cities == nil {
		cities = []string{}
	}
	_, err := s.DB.ExecContext(ctx, query, uuid.New(), rec.SessionID, uuidToNullString(rec.UserID), rec.Mode, rec.Query, pq.Array(cities))
	if err != nil {
		return fmt.Errorf("failed to record lookup: %w", err)
	}
	return nil
}

// RecentLookupCities returns the city lists of a session's latest quick lookups, newest first.
func (s *PostgresStore) RecentLookupCities(ctx context.Context, sessionID string, limit int) ([][]string, error) {
	const query = `
        SELECT cities FROM lookups
        WHERE session_id = $1 AND mode = 'quick'
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := s.DB.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lookups: %w", err)
	}
	defer rows.Close()

	out := make([][]string, 0, max(limit, 0))
	for rows.Next() {
		var cities []string
		if err := rows.Scan(pq.Array(&cities)); err != nil {
			return nil, fmt.Errorf("failed to scan lookup row: %w", err)
		}
		out = append(out, cities)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lookup rows: %w", err)
	}
	return out, nil
}

// DeleteLookupsBefore removes lookups older than cutoff and returns how many were deleted.
func (s *PostgresStore) DeleteLookupsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM lookups WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old lookups: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to determine lookups deleted: %w", err)
	}
	return rowsAffected, nil
}

func uuidToNullString(u *uuid.UUID) any {
	if u == nil {
		return nil
	}
	return u.String()
}
