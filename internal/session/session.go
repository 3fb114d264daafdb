// Package session implements the server-side session store: opaque
// random ids mapped to authenticated-user attributes, with idle timeout,
// atomic id regeneration and a signed cookie transport.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/sistema-escolar/escuela-backend/internal/model"
)

var (
	// ErrNotFound is returned for ids that were never issued or were destroyed.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned by Resolve for a session past its idle timeout.
	// The session is destroyed before the error is returned.
	ErrExpired = errors.New("session expired")
)

// idBytes is the entropy of a session id (256 bits).
const idBytes = 32

// Record is the server-held state of one session. AccountID 0 marks an
// anonymous slot that only carries a CSRF token.
type Record struct {
	ID           string     `json:"id"`
	AccountID    int64      `json:"account_id"`
	Username     string     `json:"username,omitempty"`
	Nombre       string     `json:"nombre,omitempty"`
	Apellido     string     `json:"apellido,omitempty"`
	Email        string     `json:"email,omitempty"`
	Role         model.Role `json:"rol,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
	RotatedAt    time.Time  `json:"rotated_at"`
	CSRFToken    string     `json:"csrf_token,omitempty"`
	CSRFIssuedAt time.Time  `json:"csrf_issued_at,omitempty"`
}

// Authenticated reports whether the session is bound to an account.
func (r *Record) Authenticated() bool {
	return r != nil && r.AccountID != 0
}

// User returns the public user object carried by an authenticated session.
func (r *Record) User() *model.PublicUser {
	if !r.Authenticated() {
		return nil
	}
	return &model.PublicUser{
		ID:       r.AccountID,
		Username: r.Username,
		Nombre:   r.Nombre,
		Apellido: r.Apellido,
		Email:    r.Email,
		Role:     r.Role,
	}
}

// idleSince reports whether the record has been inactive longer than timeout at now.
func (r *Record) idleSince(now time.Time, timeout time.Duration) bool {
	return now.Sub(r.LastActivity) > timeout
}

// NewID returns a fresh URL-safe session id from crypto/rand.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
