package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nomadmatch/auth"
	"nomadmatch/database"
	"nomadmatch/recommend"
	"nomadmatch/web/format"
	"nomadmatch/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxQueryLength = 2000
	historyLimit   = 20
)

type LookupHandler struct {
	recommender Recommender
	collection  CityCollection
	lookups     LookupLog
	logger      *zap.Logger
	maxResults  int
}

func NewLookupHandler(recommender Recommender, collection CityCollection, lookups LookupLog, logger *zap.Logger, maxResults int) *LookupHandler {
	return &LookupHandler{
		recommender: recommender,
		collection:  collection,
		lookups:     lookups,
		logger:      logger,
		maxResults:  max(maxResults, recommend.DefaultResults),
	}
}

type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

type QueryRequest struct {
	Query      string `json:"query" binding:"required"`
	NumResults int    `json:"num_results"`
}

type QueryResponse struct {
	Results []recommend.Candidate `json:"results"`
	Query   string                `json:"query"`
	Count   int                   `json:"count"`
}

type PremiumAdviceResponse struct {
	recommend.PremiumResult
	AdviceHTML string `json:"advice_html"`
}

// Chat serves the free quick lookup.
func (h *LookupHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request: message is required")
		return
	}
	message, ok := validQuery(c, req.Message)
	if !ok {
		return
	}

	// The body id is echoed back to API clients; history is keyed by the cookie.
	cookieID := ""
	if id, ok := middleware.SessionID(c); ok {
		cookieID = id.String()
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = cookieID
	}

	result, err := h.recommender.QuickLookup(c.Request.Context(), message, sessionID)
	if err != nil {
		respondWithAppError(c, err, h.logger, zap.String("endpoint", "chat"), zap.String("session_id", sessionID))
		return
	}

	cities := make([]string, 0, len(result.Cities))
	for _, city := range result.Cities {
		cities = append(cities, city.City)
	}
	h.recordLookup(c, database.LookupRecord{SessionID: cookieID, Mode: "quick", Query: message, Cities: cities})

	c.JSON(http.StatusOK, result)
}

// Query returns raw similarity candidates without scoring or filtering.
func (h *LookupHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request: query is required")
		return
	}
	query, ok := validQuery(c, req.Query)
	if !ok {
		return
	}

	k := req.NumResults
	if k <= 0 {
		k = recommend.DefaultResults
	}
	k = min(k, h.maxResults)

	results, err := h.collection.SimilaritySearch(c.Request.Context(), query, k)
	if err != nil {
		respondWithError(c, http.StatusBadGateway, err, "Search failed, please try again", h.logger, zap.String("endpoint", "query"))
		return
	}

	c.JSON(http.StatusOK, QueryResponse{Results: results, Query: query, Count: len(results)})
}

// PremiumAdvice serves the ranked, preference-filtered lookup with advice.
func (h *LookupHandler) PremiumAdvice(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		respondWithClientError(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request: query is required")
		return
	}
	query, ok := validQuery(c, req.Query)
	if !ok {
		return
	}

	result, err := h.recommender.PremiumLookup(c.Request.Context(), query, req.NumResults, user)
	if err != nil {
		respondWithAppError(c, err, h.logger, zap.String("endpoint", "premium_advice"), zap.String("user_id", user.ID.String()))
		return
	}

	cities := make([]string, 0, len(result.Results))
	for _, doc := range result.Results {
		cities = append(cities, doc.City)
	}
	userID := user.ID
	sessionID := ""
	if id, ok := middleware.SessionID(c); ok {
		sessionID = id.String()
	}
	h.recordLookup(c, database.LookupRecord{SessionID: sessionID, UserID: &userID, Mode: "premium", Query: query, Cities: cities})

	c.JSON(http.StatusOK, PremiumAdviceResponse{
		PremiumResult: result,
		AdviceHTML:    format.AdviceToHTML(result.Advice),
	})
}

// History returns the city lists of the caller's recent quick lookups.
func (h *LookupHandler) History(c *gin.Context) {
	sessionID, ok := middleware.SessionID(c)
	if !ok || h.lookups == nil {
		c.JSON(http.StatusOK, gin.H{"lookups": [][]string{}})
		return
	}

	history, err := h.lookups.RecentLookupCities(c.Request.Context(), sessionID.String(), historyLimit)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Failed to load lookup history", h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID.String(), "lookups": history})
}

// recordLookup logs the lookup without failing the request.
func (h *LookupHandler) recordLookup(c *gin.Context, rec database.LookupRecord) {
	if h.lookups == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 2*time.Second)
	defer cancel()
	if err := h.lookups.RecordLookup(ctx, rec); err != nil {
		h.logger.Warn("Failed to record lookup", zap.Error(err), zap.String("mode", rec.Mode))
	}
}

func validQuery(c *gin.Context, raw string) (string, bool) {
	query := strings.TrimSpace(raw)
	if query == "" {
		respondWithClientError(c, http.StatusBadRequest, "Query cannot be empty")
		return "", false
	}
	if len(query) > maxQueryLength {
		respondWithClientError(c, http.StatusBadRequest, "Query is too long")
		return "", false
	}
	return query, true
}

func userIDOf(c *gin.Context) (uuid.UUID, bool) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		respondWithClientError(c, http.StatusUnauthorized, "Not authenticated")
		return uuid.Nil, false
	}
	return user.ID, true
}
