package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

type PostgresStore struct {
	DB     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Successfully connected to the database")
	return &PostgresStore{DB: db, logger: logger}, nil
}

func (s *PostgresStore) Close() error {
	return s.DB.Close()
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// EnsureSchema creates the required extension, tables and indexes if they do
// not already exist. embeddingDim fixes the width of the city embedding column.
func (s *PostgresStore) EnsureSchema(ctx context.Context, embeddingDim int) error {
	if embeddingDim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            email TEXT UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            is_premium BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS city_documents (
            id UUID PRIMARY KEY,
            content TEXT NOT NULL,
            metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
            content_hash TEXT UNIQUE,
            source TEXT DEFAULT '',
            embedding vector(%d) NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS idx_city_documents_embedding
            ON city_documents USING hnsw (embedding vector_cosine_ops)`,
		`CREATE TABLE IF NOT EXISTS user_city_preferences (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            city_name TEXT NOT NULL,
            city_key TEXT NOT NULL,
            action TEXT NOT NULL CHECK (action IN ('like', 'dislike')),
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_city_preferences_key
            ON user_city_preferences(user_id, city_key)`,
		`CREATE TABLE IF NOT EXISTS lookups (
            id UUID PRIMARY KEY,
            session_id TEXT DEFAULT '',
            user_id UUID REFERENCES users(id) ON DELETE SET NULL,
            mode TEXT NOT NULL,
            query TEXT NOT NULL,
            cities TEXT[] DEFAULT '{}'::TEXT[],
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_lookups_created_at ON lookups(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}
