package auth

import (
	"context"
	"net/http"
	"strings"

	apperrors "nomadmatch/errors"
	"nomadmatch/recommend"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userContextKey = "user"

// Authenticator resolves bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (recommend.User, error)
}

// RequireUser rejects requests without a valid bearer token and stores the
// authenticated user in the gin context.
func RequireUser(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="nomadmatch"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		user, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			if apperrors.IsUnauthorized(err) {
				c.Header("WWW-Authenticate", `Bearer realm="nomadmatch", error="invalid_token"`)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Could not validate credentials"})
				return
			}
			if logger, ok := c.Get("logger"); ok {
				if l, ok := logger.(*zap.Logger); ok {
					l.Error("Failed to authenticate request", zap.Error(err))
				}
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by RequireUser.
func CurrentUser(c *gin.Context) (recommend.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return recommend.User{}, false
	}
	user, ok := value.(recommend.User)
	return user, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
