package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nomadmatch/database"
	apperrors "nomadmatch/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryUsers struct {
	mu      sync.Mutex
	byEmail map[string]database.UserRecord
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byEmail: make(map[string]database.UserRecord)}
}

func (m *memoryUsers) CreateUser(_ context.Context, email, hash string, premium bool) (database.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	if _, ok := m.byEmail[email]; ok {
		return database.UserRecord{}, apperrors.WrapError(apperrors.ErrInvalidInput, "already registered")
	}
	rec := database.UserRecord{ID: uuid.New(), Email: email, PasswordHash: hash, IsPremium: premium, CreatedAt: time.Now()}
	m.byEmail[email] = rec
	return rec, nil
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (database.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return database.UserRecord{}, apperrors.ErrNotFound
	}
	return rec, nil
}

func (m *memoryUsers) GetUserByID(_ context.Context, id uuid.UUID) (database.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.byEmail {
		if rec.ID == id {
			return rec, nil
		}
	}
	return database.UserRecord{}, apperrors.ErrNotFound
}

func newTestAuthService(t *testing.T) *Service {
	t.Helper()
	tokens, err := NewJWTManager(testSecret, time.Hour)
	require.NoError(t, err)
	return NewService(newMemoryUsers(), tokens, zap.NewNop())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, "Nomad@Example.com", "s3cure-password")
	require.NoError(t, err)
	assert.Equal(t, "bearer", session.TokenType)
	assert.False(t, session.User.IsPremium)

	session, err = svc.Login(ctx, "nomad@example.com", "s3cure-password")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "nomad@example.com", user.Email)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.Register(context.Background(), "not-an-email", "long enough password")
	assert.True(t, apperrors.IsInvalidInput(err))

	_, err = svc.Register(context.Background(), "a@example.com", "short")
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestAuthService(t)
	_, err := svc.Register(context.Background(), "a@example.com", "right password")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "a@example.com", "wrong password")
	assert.True(t, apperrors.IsUnauthorized(err))

	_, err = svc.Login(context.Background(), "nobody@example.com", "right password")
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestRequireUserMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newTestAuthService(t)
	session, err := svc.Register(context.Background(), "a@example.com", "right password")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", RequireUser(svc), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, user)
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong_scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage_token", header: "Bearer not.a.token", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + session.Token, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
