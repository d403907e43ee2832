package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const SessionCookieName = "nomadmatch_session"
const CookieMaxAge = 30 * 24 * 60 * 60 // 30 days

const sessionContextKey = "sessionID"

// SessionMiddleware assigns every client an anonymous session id carried in a
// cookie. The id keys rate limits and the lookup log; it grants nothing.
func SessionMiddleware(secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(SessionCookieName)
		sessionID, parseErr := uuid.Parse(cookie)

		if err == http.ErrNoCookie || parseErr != nil {
			// Missing or tampered cookies get a fresh session
			sessionID = uuid.New()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookieName, sessionID.String(), CookieMaxAge, "/", "", secureCookie, true)
		}

		c.Set(sessionContextKey, sessionID)
		c.Next()
	}
}

// SessionID returns the id set by SessionMiddleware.
func SessionID(c *gin.Context) (uuid.UUID, bool) {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	return id, ok
}
