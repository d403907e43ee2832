package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"nomadmatch/database"
	apperrors "nomadmatch/errors"
	"nomadmatch/recommend"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string, isPremium bool) (database.UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (database.UserRecord, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.UserRecord, error)
}

// Session is what register and login hand back to the client.
type Session struct {
	Token     string         `json:"access_token"`
	TokenType string         `json:"token_type"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      recommend.User `json:"user"`
}

type Service struct {
	users  UserStore
	tokens *JWTManager
	logger *zap.Logger
}

func NewService(users UserStore, tokens *JWTManager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, tokens: tokens, logger: logger}
}

// Register creates a free account and signs it in.
func (s *Service) Register(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "invalid email address %q", email)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, apperrors.WrapError(apperrors.ErrInvalidInput, err.Error())
	}

	rec, err := s.users.CreateUser(ctx, email, hash, false)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("User registered", zap.String("user_id", rec.ID.String()))
	return s.issue(rec)
}

// Login verifies credentials. Unknown emails and wrong passwords produce the
// same unauthorized error.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	rec, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return Session{}, apperrors.WrapError(apperrors.ErrUnauthorized, "invalid email or password")
		}
		return Session{}, err
	}

	ok, err := CheckPassword(rec.PasswordHash, password)
	if err != nil {
		return Session{}, apperrors.WrapError(err, "verify password")
	}
	if !ok {
		return Session{}, apperrors.WrapError(apperrors.ErrUnauthorized, "invalid email or password")
	}
	return s.issue(rec)
}

// Authenticate resolves a bearer token to the current account.
func (s *Service) Authenticate(ctx context.Context, token string) (recommend.User, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return recommend.User{}, apperrors.WrapError(apperrors.ErrUnauthorized, err.Error())
	}
	rec, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return recommend.User{}, apperrors.WrapError(apperrors.ErrUnauthorized, "account no longer exists")
		}
		return recommend.User{}, err
	}
	return rec.ToUser(), nil
}

func (s *Service) issue(rec database.UserRecord) (Session, error) {
	token, expires, err := s.tokens.GenerateToken(rec.ID, rec.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		TokenType: "bearer",
		ExpiresAt: expires,
		User:      rec.ToUser(),
	}, nil
}
