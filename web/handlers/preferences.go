package handlers

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "nomadmatch/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PreferenceHandler struct {
	recommender Recommender
	logger      *zap.Logger
}

func NewPreferenceHandler(recommender Recommender, logger *zap.Logger) *PreferenceHandler {
	return &PreferenceHandler{recommender: recommender, logger: logger}
}

type CityPreferenceRequest struct {
	CityName string `json:"city_name" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

type CityPreferenceResponse struct {
	Message  string `json:"message"`
	CityName string `json:"city_name"`
	Action   string `json:"action"`
	UserID   string `json:"user_id"`
}

// SetCity records a like or dislike.
func (h *PreferenceHandler) SetCity(c *gin.Context) {
	userID, ok := userIDOf(c)
	if !ok {
		return
	}

	var req CityPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request: city_name and action are required")
		return
	}

	pref, err := h.recommender.SetPreference(c.Request.Context(), userID, req.CityName, req.Action)
	if err != nil {
		respondWithAppError(c, err, h.logger, zap.String("endpoint", "set_preference"), zap.String("user_id", userID.String()))
		return
	}

	c.JSON(http.StatusOK, CityPreferenceResponse{
		Message:  fmt.Sprintf("Preference saved for %s", pref.CityName),
		CityName: pref.CityName,
		Action:   string(pref.Action),
		UserID:   userID.String(),
	})
}

// ListCities returns every preference of the current user.
func (h *PreferenceHandler) ListCities(c *gin.Context) {
	userID, ok := userIDOf(c)
	if !ok {
		return
	}

	list, err := h.recommender.ListPreferences(c.Request.Context(), userID)
	if err != nil {
		respondWithAppError(c, err, h.logger, zap.String("endpoint", "list_preferences"), zap.String("user_id", userID.String()))
		return
	}
	c.JSON(http.StatusOK, list)
}

// DeleteCity removes the preference named in the path.
func (h *PreferenceHandler) DeleteCity(c *gin.Context) {
	userID, ok := userIDOf(c)
	if !ok {
		return
	}

	cityName := strings.TrimSpace(c.Param("city_name"))
	if cityName == "" {
		respondWithClientError(c, http.StatusBadRequest, "City name is required")
		return
	}

	if err := h.recommender.DeletePreference(c.Request.Context(), userID, cityName); err != nil {
		if apperrors.IsNotFound(err) {
			respondWithClientError(c, http.StatusNotFound, "Preference not found")
			return
		}
		respondWithAppError(c, err, h.logger, zap.String("endpoint", "delete_preference"), zap.String("user_id", userID.String()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Preference deleted for %s", cityName)})
}
