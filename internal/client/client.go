// Package client mirrors the server's authentication state for command-line
// and scripted consumers: a cookie-carrying HTTP client, a cached user with a
// restore window, background session polling and a soft lockout after
// repeated failed logins.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sistema-escolar/escuela-backend/internal/model"
)

// APIError is a failure body returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// LockedError is returned while logins are locked out, either by the local
// failure counter or by a 429 from the server.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return "demasiados intentos fallidos, intenta de nuevo a las " + e.Until.Format("15:04:05")
}

// ErrInvalidCredentials is returned for a 401 on login.
var ErrInvalidCredentials = errors.New("usuario, contraseña o rol incorrectos")

// SessionStatus is the body of GET /session.
type SessionStatus struct {
	LoggedIn bool              `json:"logged_in"`
	User     *model.PublicUser `json:"user"`
}

// CSRFToken is the body of GET /csrf-token.
type CSRFToken struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type failureBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type loginBody struct {
	Success  bool              `json:"success"`
	User     *model.PublicUser `json:"user"`
	Redirect string            `json:"redirect"`
}

// do sends a JSON request and decodes a 2xx body into out. Non-2xx responses
// become *APIError.
func (m *Manager) do(ctx context.Context, method, path string, in, out interface{}) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, m.requestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var fb failureBody
		if err := json.NewDecoder(resp.Body).Decode(&fb); err == nil {
			apiErr.Code = fb.Error
			apiErr.Message = fb.Message
		}
		return resp, apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("invalid response from server: %w", err)
		}
	}
	return resp, nil
}

func (m *Manager) requestError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("request canceled")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("request timed out")
	default:
		return fmt.Errorf("cannot connect to server at %s: %w", m.baseURL, err)
	}
}

// retryAfter reads a Retry-After header in seconds.
func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if resp == nil {
		return fallback
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
