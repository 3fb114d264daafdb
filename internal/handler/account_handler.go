package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sistema-escolar/escuela-backend/internal/middleware"
	"github.com/sistema-escolar/escuela-backend/internal/response"
	"github.com/sistema-escolar/escuela-backend/internal/service"
)

const (
	defaultAttemptsLimit = 20
	maxAttemptsLimit     = 100
)

// AccountHandler handles admin account management endpoints.
type AccountHandler struct {
	authService *service.AuthService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(authService *service.AuthService) *AccountHandler {
	return &AccountHandler{authService: authService}
}

// Disable godoc
// POST /api/v1/admin/accounts/:id/disable
// Soft-disables an account and logs it out everywhere.
func (h *AccountHandler) Disable(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	n, err := h.authService.DisableAccount(c.Request.Context(), middleware.SessionID(c), id, middleware.Meta(c))
	if err != nil {
		writeError(c, err, response.ErrRateLimitExceeded)
		return
	}

	response.Data(c, http.StatusOK, gin.H{
		"message":            response.MsgAccountDisabled,
		"account_id":         id,
		"sessions_destroyed": n,
	})
}

// LoginAttempts godoc
// GET /api/v1/admin/login-attempts?username=&limit=
// Lists the latest recorded login attempts for a username.
func (h *AccountHandler) LoginAttempts(c *gin.Context) {
	limit := defaultAttemptsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
			return
		}
		limit = min(n, maxAttemptsLimit)
	}

	attempts, err := h.authService.LoginAttempts(c.Request.Context(), c.Query("username"), limit)
	if err != nil {
		writeError(c, err, response.ErrRateLimitExceeded)
		return
	}

	response.Data(c, http.StatusOK, gin.H{"attempts": attempts})
}
