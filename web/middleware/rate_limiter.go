package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Limit types accepted by RateLimitMiddleware.
const (
	LimitLookup = "lookup"
	LimitUpload = "upload"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	LookupsPerMinute int           // Max lookups per session per minute
	UploadsPerHour   int           // Max CSV uploads per session per hour
	BurstSize        int           // Allow burst of N requests
	CleanupInterval  time.Duration // How often to clean up idle entries
	IdleTimeout      time.Duration // Buckets unused this long are dropped
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request can proceed and consumes a token if so
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(time.Now())
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Remaining returns the number of whole tokens remaining
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(time.Now())
	return int(tb.tokens)
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.maxTokens, tb.tokens+(elapsed*tb.refillRate))
	tb.lastRefill = now
}

// SessionRateLimiter manages rate limits per session
type SessionRateLimiter struct {
	config       RateLimiterConfig
	lookupLimits map[uuid.UUID]*TokenBucket
	uploadLimits map[uuid.UUID]*TokenBucket
	mu           sync.Mutex
	logger       *zap.Logger
	stopCleanup  chan struct{}
	stopOnce     sync.Once
}

// NewSessionRateLimiter creates a new session-based rate limiter
func NewSessionRateLimiter(config RateLimiterConfig, logger *zap.Logger) *SessionRateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BurstSize <= 0 {
		config.BurstSize = max(1, config.LookupsPerMinute)
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 10 * time.Minute
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = time.Hour
	}

	limiter := &SessionRateLimiter{
		config:       config,
		lookupLimits: make(map[uuid.UUID]*TokenBucket),
		uploadLimits: make(map[uuid.UUID]*TokenBucket),
		logger:       logger,
		stopCleanup:  make(chan struct{}),
	}

	go limiter.cleanupRoutine()

	return limiter
}

func (srl *SessionRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(srl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			srl.cleanup(time.Now())
		case <-srl.stopCleanup:
			return
		}
	}
}

// cleanup drops buckets that have been idle longer than IdleTimeout. An idle
// bucket has refilled completely, so forgetting it changes nothing.
func (srl *SessionRateLimiter) cleanup(now time.Time) {
	srl.mu.Lock()
	defer srl.mu.Unlock()

	removed := 0
	for _, buckets := range []map[uuid.UUID]*TokenBucket{srl.lookupLimits, srl.uploadLimits} {
		for id, bucket := range buckets {
			if now.Sub(bucket.idleSince()) > srl.config.IdleTimeout {
				delete(buckets, id)
				removed++
			}
		}
	}
	if removed > 0 {
		srl.logger.Debug("Cleaned up idle rate limiters", zap.Int("removed", removed))
	}
}

// Stop stops the cleanup routine
func (srl *SessionRateLimiter) Stop() {
	srl.stopOnce.Do(func() { close(srl.stopCleanup) })
}

func (srl *SessionRateLimiter) bucket(limits map[uuid.UUID]*TokenBucket, sessionID uuid.UUID, capacity float64, refillPerSecond float64) *TokenBucket {
	srl.mu.Lock()
	defer srl.mu.Unlock()

	bucket, exists := limits[sessionID]
	if !exists {
		bucket = NewTokenBucket(capacity, refillPerSecond)
		limits[sessionID] = bucket
	}
	return bucket
}

// AllowLookup checks if a lookup can run for the given session
func (srl *SessionRateLimiter) AllowLookup(sessionID uuid.UUID) (allowed bool, remaining int) {
	refillRate := float64(srl.config.LookupsPerMinute) / 60.0
	bucket := srl.bucket(srl.lookupLimits, sessionID, float64(srl.config.BurstSize), refillRate)
	allowed = bucket.Allow()
	return allowed, bucket.Remaining()
}

// AllowUpload checks if a CSV upload can proceed for the given session
func (srl *SessionRateLimiter) AllowUpload(sessionID uuid.UUID) (allowed bool, remaining int) {
	refillRate := float64(srl.config.UploadsPerHour) / 3600.0
	bucket := srl.bucket(srl.uploadLimits, sessionID, float64(max(1, srl.config.UploadsPerHour)), refillRate)
	allowed = bucket.Allow()
	return allowed, bucket.Remaining()
}

// RateLimitMiddleware creates a Gin middleware for rate limiting. It expects
// SessionMiddleware to have run first.
func RateLimitMiddleware(limiter *SessionRateLimiter, limitType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, exists := SessionID(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session not initialized"})
			return
		}

		var allowed bool
		var remaining, limit int
		var retryAfter int

		switch limitType {
		case LimitLookup:
			allowed, remaining = limiter.AllowLookup(sessionID)
			limit = limiter.config.BurstSize
			retryAfter = 60
		case LimitUpload:
			allowed, remaining = limiter.AllowUpload(sessionID)
			limit = limiter.config.UploadsPerHour
			retryAfter = 3600
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown limit type"})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			logger, _ := c.Get("logger")
			if zapLogger, ok := logger.(*zap.Logger); ok && zapLogger != nil {
				zapLogger.Warn("Rate limit exceeded",
					zap.String("session_id", sessionID.String()),
					zap.String("limit_type", limitType),
					zap.Int("limit", limit))
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"limit":       limit,
				"remaining":   remaining,
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
