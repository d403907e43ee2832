package handlers

import (
	"context"
	"net/http"
	"time"

	apperrors "nomadmatch/errors"
	"nomadmatch/rag"
	"nomadmatch/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxUploadBytes = 10 << 20

type CollectionHandler struct {
	collection CityCollection
	db         Pinger
	logger     *zap.Logger
	version    string
}

func NewCollectionHandler(collection CityCollection, db Pinger, logger *zap.Logger, version string) *CollectionHandler {
	return &CollectionHandler{collection: collection, db: db, logger: logger, version: version}
}

// Index is the service banner.
func (h *CollectionHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "NomadMatch API",
		"version": h.version,
		"status":  "running",
	})
}

// Health reports service and store status. A reachable service with an
// unreachable database answers 503 so orchestrators stop routing to it.
func (h *CollectionHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":           "unhealthy",
			"store_configured": false,
		})
		return
	}

	stats, err := h.collection.Stats(ctx)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Failed to read collection stats", h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"store_configured": true,
		"stats":            stats,
	})
}

// Collections lists the city collection with its statistics.
func (h *CollectionHandler) Collections(c *gin.Context) {
	stats, err := h.collection.Stats(c.Request.Context())
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Failed to read collection stats", h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"collections": []string{rag.CollectionName},
		"stats":       stats,
	})
}

// Upload ingests a city CSV sent as the multipart field "file".
func (h *CollectionHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "A CSV file is required in the 'file' field")
		return
	}

	filename := utils.SanitizeFilename(fileHeader.Filename)
	if filename == "" || !utils.IsCSVFilename(filename) {
		respondWithClientError(c, http.StatusBadRequest, "Only .csv files are accepted")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		respondWithClientError(c, http.StatusRequestEntityTooLarge, "File exceeds the 10MB upload limit")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Failed to read upload", h.logger, zap.String("filename", filename))
		return
	}
	defer file.Close()

	result, err := h.collection.IngestCSV(c.Request.Context(), file, filename)
	if err != nil {
		if apperrors.IsInvalidInput(err) {
			respondWithClientError(c, http.StatusBadRequest, clientMessage(err))
			return
		}
		respondWithAppError(c, err, h.logger, zap.String("endpoint", "upload"), zap.String("filename", filename))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "Document uploaded successfully",
		"filename":         filename,
		"success":          true,
		"rows":             result.Rows,
		"chunks_processed": result.Processed,
		"skipped":          result.Skipped,
	})
}
