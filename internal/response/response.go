package response

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sistema-escolar/escuela-backend/internal/model"
)

// Every body carries a success (or logged_in) discriminant. Failures add a
// stable machine code in error and a localized message.

// FailureBody is the envelope of every failed request.
type FailureBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Error   ErrCode           `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// MessageBody is a bare success acknowledgement.
type MessageBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginBody is the body of a successful POST /login.
type LoginBody struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	User     *model.PublicUser `json:"user"`
	Redirect string            `json:"redirect"`
}

// SessionBody is the body of GET /check_session. User is null when logged out.
type SessionBody struct {
	LoggedIn bool              `json:"logged_in"`
	User     *model.PublicUser `json:"user"`
}

// CSRFBody is the body of GET /csrf_token.
type CSRFBody struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
	Timestamp int64  `json:"timestamp"`
}

// RegisterBody is the body of a successful POST /register.
type RegisterBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

// DataBody wraps arbitrary payloads of the authenticated API.
type DataBody struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ────────────────────────────────────────────────────────────────────────────
// Helper builders
// ────────────────────────────────────────────────────────────────────────────

// OK sends a success acknowledgement with the given message.
func OK(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, MessageBody{Success: true, Message: message})
}

// Data sends a success response wrapping data.
func Data(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, DataBody{Success: true, Data: data})
}

// Fail sends an error response with an error code and no field-level details.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, failure(code, GetMessage(code), nil))
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, failure(code, GetMessage(code), fields))
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, failure(code, GetMessage(code), nil))
}

// TooManyRequests aborts with 429 and a Retry-After header rounded up to whole seconds.
func TooManyRequests(c *gin.Context, code ErrCode, retryAfter time.Duration) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, failure(code, GetMessage(code), nil))
}

func failure(code ErrCode, message string, fields map[string]string) FailureBody {
	return FailureBody{
		Success: false,
		Message: message,
		Error:   code,
		Fields:  fields,
	}
}
