package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/response"
	"github.com/sistema-escolar/escuela-backend/internal/service"
)

// RequireRole admits authenticated sessions whose role is at least role.
// Requires LoadSession to run first.
func RequireRole(authService *service.AuthService, role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec := GetSession(c)
		if !rec.Authenticated() {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionRequired)
			return
		}

		if !authService.Authorize(c.Request.Context(), rec.ID, role) {
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}

		c.Next()
	}
}
