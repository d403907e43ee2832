package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nomadmatch/recommend"

	"github.com/google/uuid"
)

// cityKey is the case-insensitive comparison key stored next to the
// display name; the display name is never rewritten.
func cityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// UpsertPreference records action for (userID, cityName). A second call for
// the same city, in any letter case, updates the existing row in place and
// keeps the display name chosen on the first call.
func (s *PostgresStore) UpsertPreference(ctx context.Context, userID uuid.UUID, cityName string, action recommend.Action) (recommend.Preference, error) {
	const query = `
        INSERT INTO user_city_preferences (id, user_id, city_name, city_key, action, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        ON CONFLICT (user_id, city_key)
        DO UPDATE SET action = EXCLUDED.action, updated_at = NOW()
        RETURNING user_id, city_name, action, created_at
    `

	var (
		pref   recommend.Preference
		stored string
	)
	err := s.DB.QueryRowContext(ctx, query, uuid.New(), userID, cityName, cityKey(cityName), string(action)).
		Scan(&pref.UserID, &pref.CityName, &stored, &pref.CreatedAt)
	if err != nil {
		return recommend.Preference{}, fmt.Errorf("failed to upsert city preference: %w", err)
	}
	pref.Action = recommend.Action(stored)
	return pref, nil
}

// ListPreferences returns every preference of a user, oldest first.
func (s *PostgresStore) ListPreferences(ctx context.Context, userID uuid.UUID) ([]recommend.Preference, error) {
	const query = `
        SELECT user_id, city_name, action, created_at
        FROM user_city_preferences
        WHERE user_id = $1
        ORDER BY created_at ASC, city_key ASC
    `

	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query city preferences: %w", err)
	}
	defer rows.Close()

	var prefs []recommend.Preference
	for rows.Next() {
		var (
			pref      recommend.Preference
			action    string
			createdAt time.Time
		)
		if err := rows.Scan(&pref.UserID, &pref.CityName, &action, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan city preference row: %w", err)
		}
		pref.Action = recommend.Action(action)
		pref.CreatedAt = createdAt
		prefs = append(prefs, pref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating city preference rows: %w", err)
	}
	return prefs, nil
}

// ListDislikes returns the display names of every city the user disliked.
func (s *PostgresStore) ListDislikes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	const query = `
        SELECT city_name FROM user_city_preferences
        WHERE user_id = $1 AND action = 'dislike'
    `

	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query disliked cities: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan disliked city: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating disliked cities: %w", err)
	}
	return names, nil
}

// DeletePreference removes the user's preference for cityName and reports
// whether a row existed.
func (s *PostgresStore) DeletePreference(ctx context.Context, userID uuid.UUID, cityName string) (bool, error) {
	const query = `DELETE FROM user_city_preferences WHERE user_id = $1 AND city_key = $2`

	result, err := s.DB.ExecContext(ctx, query, userID, cityKey(cityName))
	if err != nil {
		return false, fmt.Errorf("failed to delete city preference: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to determine rows deleted for city preference: %w", err)
	}
	return rowsAffected > 0, nil
}
