package handlers

import (
	"net/http"

	"nomadmatch/auth"
	apperrors "nomadmatch/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AccountHandler struct {
	accounts Accounts
	logger   *zap.Logger
}

func NewAccountHandler(accounts Accounts, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type CredentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request: email and password are required")
		return
	}

	session, err := h.accounts.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithAppError(c, err, h.logger, zap.String("endpoint", "register"))
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request: email and password are required")
		return
	}

	session, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			respondWithClientError(c, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		respondWithAppError(c, err, h.logger, zap.String("endpoint", "login"))
		return
	}
	c.JSON(http.StatusOK, session)
}

// Me returns the authenticated account.
func (h *AccountHandler) Me(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		respondWithClientError(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	c.JSON(http.StatusOK, user)
}
