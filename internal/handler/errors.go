package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sistema-escolar/escuela-backend/internal/response"
	"github.com/sistema-escolar/escuela-backend/internal/service"
	"github.com/sistema-escolar/escuela-backend/internal/validator"
)

// writeError maps service errors onto status codes. limitCode is the code
// reported when the error is a rate limit.
func writeError(c *gin.Context, err error, limitCode response.ErrCode) {
	var (
		rl   *service.RateLimitError
		weak *service.WeakPasswordError
	)

	switch {
	case errors.As(err, &weak):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrWeakPassword, map[string]string{
			"password": strings.Join(weak.Suggestions, ". "),
		})
	case errors.Is(err, service.ErrValidation):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrAccountNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAccountNotFound)
	case errors.Is(err, service.ErrDuplicateAccount):
		response.Fail(c, http.StatusConflict, response.ErrDuplicateAccount)
	case errors.As(err, &rl):
		response.TooManyRequests(c, limitCode, rl.RetryAfter)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// bindJSON binds the body into dst and writes a 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	fields := validator.Bind(c, dst)
	if fields == nil {
		return true
	}
	if validator.IsBodyError(fields) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return false
	}
	response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
	return false
}
