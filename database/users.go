package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "nomadmatch/errors"
	"nomadmatch/recommend"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// UserRecord is a stored account including its password hash.
type UserRecord struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsPremium    bool
	CreatedAt    time.Time
}

// ToUser drops the credential fields.
func (u UserRecord) ToUser() recommend.User {
	return recommend.User{ID: u.ID, Email: u.Email, IsPremium: u.IsPremium}
}

const uniqueViolation = "23505"

// CreateUser inserts an account. A duplicate email is reported as invalid input.
func (s *PostgresStore) CreateUser(ctx context.Context, email, passwordHash string, isPremium bool) (UserRecord, error) {
	rec := UserRecord{
		ID:           uuid.New(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		IsPremium:    isPremium,
	}

	const query = `
        INSERT INTO users (id, email, password_hash, is_premium, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING created_at
    `
	err := s.DB.QueryRowContext(ctx, query, rec.ID, rec.Email, rec.PasswordHash, rec.IsPremium).Scan(&rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return UserRecord{}, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "email %s is already registered", rec.Email)
		}
		return UserRecord{}, fmt.Errorf("failed to create user: %w", err)
	}
	return rec, nil
}

// GetUserByEmail loads an account by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	return s.getUser(ctx, `WHERE email = $1`, normalizeEmail(email))
}

// GetUserByID loads an account by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (UserRecord, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (UserRecord, error) {
	query := `SELECT id, email, password_hash, is_premium, created_at FROM users ` + where

	var rec UserRecord
	err := s.DB.QueryRowContext(ctx, query, arg).Scan(&rec.ID, &rec.Email, &rec.PasswordHash, &rec.IsPremium, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserRecord{}, apperrors.WrapError(apperrors.ErrNotFound, "user not found")
		}
		return UserRecord{}, fmt.Errorf("failed to get user: %w", err)
	}
	return rec, nil
}

// SetPremium grants or revokes the premium entitlement.
func (s *PostgresStore) SetPremium(ctx context.Context, id uuid.UUID, premium bool) error {
	result, err := s.DB.ExecContext(ctx, `UPDATE users SET is_premium = $1 WHERE id = $2`, premium, id)
	if err != nil {
		return fmt.Errorf("failed to update premium flag: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.WrapError(apperrors.ErrNotFound, "user not found")
	}
	return nil
}

// IsPremium re-reads the entitlement from the users table so that a change
// takes effect on the next request rather than when a token is reissued.
func (s *PostgresStore) IsPremium(ctx context.Context, user recommend.User) (bool, error) {
	var premium bool
	err := s.DB.QueryRowContext(ctx, `SELECT is_premium FROM users WHERE id = $1`, user.ID).Scan(&premium)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read premium flag: %w", err)
	}
	return premium, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
