package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sistema-escolar/escuela-backend/internal/middleware"
	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/response"
	"github.com/sistema-escolar/escuela-backend/internal/service"
	"github.com/sistema-escolar/escuela-backend/internal/session"
)

// AuthHandler handles login, logout, session check and registration.
type AuthHandler struct {
	authService *service.AuthService
	cookies     *session.CookieCodec
	idleTimeout time.Duration
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, cookies *session.CookieCodec, idleTimeout time.Duration, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
		idleTimeout: idleTimeout,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// Login godoc
// POST /login
// Verifies credentials for the selected role and starts a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Username:  req.Usuario,
		Password:  req.Password,
		Role:      req.Rol,
		SessionID: middleware.SessionID(c),
		Meta:      middleware.Meta(c),
	})
	if err != nil {
		writeError(c, err, response.ErrLoginLocked)
		return
	}

	if err := h.cookies.Write(c.Writer, c.Request, res.Session.ID); err != nil {
		h.log.Error().Err(err).Msg("Failed to write session cookie")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.JSON(http.StatusOK, response.LoginBody{
		Success:  true,
		Message:  response.MsgLoginOK,
		User:     res.User,
		Redirect: res.Redirect,
	})
}

// Logout godoc
// POST /logout
// Destroys the caller's session. Always succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.authService.Logout(c.Request.Context(), middleware.SessionID(c), middleware.Meta(c))
	h.cookies.Clear(c.Writer, c.Request)
	response.OK(c, http.StatusOK, response.MsgLogoutOK)
}

// CheckSession godoc
// GET /check_session
// Reports whether the caller is logged in. Always 200.
func (h *AuthHandler) CheckSession(c *gin.Context) {
	status := h.authService.CheckSession(c.Request.Context(), middleware.SessionID(c))
	c.JSON(http.StatusOK, response.SessionBody{
		LoggedIn: status.LoggedIn,
		User:     status.User,
	})
}

// Register godoc
// POST /register
// Creates a student or teacher account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	id, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Nombre:   req.Nombre,
		Apellido: req.Apellido,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Telefono: req.Telefono,
		Role:     req.Rol,
		Meta:     middleware.Meta(c),
	})
	if err != nil {
		writeError(c, err, response.ErrRegisterLimit)
		return
	}

	c.JSON(http.StatusCreated, response.RegisterBody{
		Success: true,
		Message: response.MsgRegistered,
		UserID:  id,
	})
}

// Me godoc
// GET /api/v1/me
// Returns the authenticated user and the session's idle deadline.
func (h *AuthHandler) Me(c *gin.Context) {
	rec := middleware.GetSession(c)
	if !rec.Authenticated() {
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionRequired)
		return
	}

	response.Data(c, http.StatusOK, gin.H{
		"user": rec.User(),
		"session": gin.H{
			"created_at":    rec.CreatedAt.UTC(),
			"last_activity": rec.LastActivity.UTC(),
			"expires_at":    rec.LastActivity.Add(h.idleTimeout).UTC(),
		},
	})
}
