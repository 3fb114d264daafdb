// Package csrf issues and validates the anti-forgery token bound to a session.
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sistema-escolar/escuela-backend/internal/metrics"
	"github.com/sistema-escolar/escuela-backend/internal/session"
)

// tokenBytes is the entropy of a token before hex encoding.
const tokenBytes = 32

// Token is an issued token and its remaining lifetime.
type Token struct {
	Value     string
	ExpiresIn int
	// Fresh is set when Issue generated a new value instead of returning the live one.
	Fresh bool
}

// Issuer keeps one live token per session, stored on the session record.
type Issuer struct {
	sessions *session.Manager
	ttl      time.Duration
}

// NewIssuer creates an Issuer whose tokens expire after ttl.
func NewIssuer(sessions *session.Manager, ttl time.Duration) *Issuer {
	return &Issuer{sessions: sessions, ttl: ttl}
}

// Issue returns the session's live token, generating a new one when none
// exists or the previous one expired. Repeated calls within the TTL return
// the same value. If the session was rotated or destroyed after it was
// resolved, Issue returns session.ErrNotFound instead of recreating it.
func (i *Issuer) Issue(ctx context.Context, sessionID string) (Token, error) {
	rec, err := i.sessions.Resolve(ctx, sessionID)
	if err != nil {
		return Token{}, err
	}

	now := i.sessions.Now()
	fresh := false
	if rec.CSRFToken == "" || i.expired(rec, now) {
		value, err := generate()
		if err != nil {
			return Token{}, fmt.Errorf("generate csrf token: %w", err)
		}
		if err := i.sessions.SetCSRF(ctx, rec.ID, value, now); err != nil {
			return Token{}, err
		}
		rec.CSRFToken = value
		rec.CSRFIssuedAt = now
		fresh = true
	}

	remaining := i.ttl - now.Sub(rec.CSRFIssuedAt)
	return Token{
		Value:     rec.CSRFToken,
		ExpiresIn: int(remaining.Seconds()),
		Fresh:     fresh,
	}, nil
}

// Validate reports whether candidate is the live token of the session. It
// fails closed on any missing piece or store error. Validate never writes;
// an expired token stays rejected until Issue replaces it.
func (i *Issuer) Validate(ctx context.Context, sessionID, candidate string) bool {
	ok := i.validate(ctx, sessionID, candidate)
	metrics.RecordCSRFValidation(ok)
	return ok
}

func (i *Issuer) validate(ctx context.Context, sessionID, candidate string) bool {
	if sessionID == "" || candidate == "" {
		return false
	}

	rec, err := i.sessions.Resolve(ctx, sessionID)
	if err != nil || rec.CSRFToken == "" {
		return false
	}

	if i.expired(rec, i.sessions.Now()) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(rec.CSRFToken), []byte(candidate)) == 1
}

func (i *Issuer) expired(rec *session.Record, now time.Time) bool {
	return now.Sub(rec.CSRFIssuedAt) > i.ttl
}

func generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
