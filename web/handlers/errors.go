package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "nomadmatch/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondWithError logs the technical error and returns a user-friendly message
func respondWithError(c *gin.Context, statusCode int, technicalError error, userMessage string, logger *zap.Logger, fields ...zap.Field) {
	if logger != nil {
		fields = append(fields, zap.Error(technicalError), zap.Int("status", statusCode))
		logger.Error("Request failed", fields...)
	}

	c.JSON(statusCode, gin.H{"error": userMessage})
}

// respondWithClientError returns a client error (no logging needed for validation errors)
func respondWithClientError(c *gin.Context, statusCode int, userMessage string) {
	c.JSON(statusCode, gin.H{"error": userMessage})
}

// respondWithAppError maps the error taxonomy onto HTTP statuses. Client
// errors echo the wrapped message; everything else is logged and hidden.
func respondWithAppError(c *gin.Context, err error, logger *zap.Logger, fields ...zap.Field) {
	switch {
	case apperrors.IsInvalidInput(err):
		respondWithClientError(c, http.StatusBadRequest, clientMessage(err))
	case apperrors.IsUnauthorized(err):
		respondWithClientError(c, http.StatusUnauthorized, "Could not validate credentials")
	case apperrors.IsForbidden(err):
		respondWithClientError(c, http.StatusForbidden, "Premium subscription required")
	case apperrors.IsNotFound(err):
		respondWithClientError(c, http.StatusNotFound, "Not found")
	case errors.Is(err, context.DeadlineExceeded):
		respondWithError(c, http.StatusGatewayTimeout, err, "The request took too long, please try again", logger, fields...)
	case apperrors.IsServiceUnavailable(err):
		respondWithError(c, http.StatusServiceUnavailable, err, "Service temporarily unavailable", logger, fields...)
	case apperrors.IsCollaboratorFailure(err):
		respondWithError(c, http.StatusBadGateway, err, "An upstream service failed, please try again", logger, fields...)
	default:
		respondWithError(c, http.StatusInternalServerError, err, "Internal server error", logger, fields...)
	}
}

// clientMessage drops the trailing sentinel text from an invalid input error.
func clientMessage(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+apperrors.ErrInvalidInput.Error())
}
