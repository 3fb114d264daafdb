package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sistema-escolar/escuela-backend/internal/response"
	"github.com/sistema-escolar/escuela-backend/internal/service"
)

// CSRFHeader carries the anti-forgery token on state-changing requests.
const CSRFHeader = "X-CSRF-Token"

// RequireCSRF rejects unsafe requests whose X-CSRF-Token header is not the
// live token of the caller's session. Requires LoadSession to run first.
func RequireCSRF(csrfService *service.CSRFService) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		token := c.GetHeader(CSRFHeader)
		if token == "" {
			response.AbortFail(c, http.StatusForbidden, response.ErrCSRFRequired)
			return
		}

		if !csrfService.Validate(c.Request.Context(), SessionID(c), token, Meta(c)) {
			response.AbortFail(c, http.StatusForbidden, response.ErrCSRFInvalid)
			return
		}

		c.Next()
	}
}

// Meta extracts the caller's address and user agent.
func Meta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
