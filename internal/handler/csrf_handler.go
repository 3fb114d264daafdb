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
	"github.com/sistema-escolar/escuela-backend/internal/validator"
)

// CSRFHandler issues and validates anti-forgery tokens.
type CSRFHandler struct {
	csrfService *service.CSRFService
	cookies     *session.CookieCodec
	log         zerolog.Logger
}

// NewCSRFHandler creates a new CSRFHandler.
func NewCSRFHandler(csrfService *service.CSRFService, cookies *session.CookieCodec, log zerolog.Logger) *CSRFHandler {
	return &CSRFHandler{
		csrfService: csrfService,
		cookies:     cookies,
		log:         log.With().Str("component", "csrf_handler").Logger(),
	}
}

// Issue godoc
// GET /csrf_token
// Returns the live token of the caller's session, creating an anonymous
// session when the caller has none.
func (h *CSRFHandler) Issue(c *gin.Context) {
	current := middleware.SessionID(c)

	tok, sid, err := h.csrfService.Issue(c.Request.Context(), current, middleware.Meta(c))
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if sid != current {
		if err := h.cookies.Write(c.Writer, c.Request, sid); err != nil {
			h.log.Error().Err(err).Msg("Failed to write session cookie")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
	}

	c.JSON(http.StatusOK, response.CSRFBody{
		Success:   true,
		Token:     tok.Value,
		ExpiresIn: tok.ExpiresIn,
		Timestamp: time.Now().Unix(),
	})
}

// Validate godoc
// POST /csrf_token
// Checks a token against the caller's session: 200 when valid, 403 otherwise.
func (h *CSRFHandler) Validate(c *gin.Context) {
	var req model.CSRFValidateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrCSRFRequired)
		return
	}

	if !h.csrfService.Validate(c.Request.Context(), middleware.SessionID(c), req.Token, middleware.Meta(c)) {
		response.Fail(c, http.StatusForbidden, response.ErrCSRFInvalid)
		return
	}

	response.OK(c, http.StatusOK, response.MsgCSRFValid)
}
