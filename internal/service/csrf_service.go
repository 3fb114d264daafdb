package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/sistema-escolar/escuela-backend/internal/csrf"
	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/session"
)

// CSRFService issues and checks anti-forgery tokens for HTTP callers.
type CSRFService struct {
	issuer   *csrf.Issuer
	sessions *session.Manager
	audit    *Auditor
	log      zerolog.Logger
}

// NewCSRFService creates a new CSRFService.
func NewCSRFService(issuer *csrf.Issuer, sessions *session.Manager, audit *Auditor, log zerolog.Logger) *CSRFService {
	return &CSRFService{
		issuer:   issuer,
		sessions: sessions,
		audit:    audit,
		log:      log.With().Str("component", "csrf_service").Logger(),
	}
}

// Issue returns the live token of the session. Callers without a live
// session get an anonymous one; the returned id is the session the token
// belongs to and must be sent back in the cookie when it changed.
func (s *CSRFService) Issue(ctx context.Context, sessionID string, meta RequestMeta) (csrf.Token, string, error) {
	tok, err := s.issuer.Issue(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrExpired) {
		rec, cerr := s.sessions.CreateAnonymous(ctx)
		if cerr != nil {
			s.log.Error().Err(cerr).Msg("Failed to create anonymous session")
			return csrf.Token{}, "", ErrSystem
		}
		sessionID = rec.ID
		tok, err = s.issuer.Issue(ctx, sessionID)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to issue csrf token")
		return csrf.Token{}, "", ErrSystem
	}

	if tok.Fresh {
		s.audit.Record(ctx, model.AuditEvent{
			Action:    model.AuditCSRFIssued,
			Success:   true,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
		})
	}
	return tok, sessionID, nil
}

// Validate reports whether token is the session's live token. Rejections
// are audited with a short token prefix only.
func (s *CSRFService) Validate(ctx context.Context, sessionID, token string, meta RequestMeta) bool {
	if s.issuer.Validate(ctx, sessionID, token) {
		return true
	}

	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	s.audit.Record(ctx, model.AuditEvent{
		Action:    model.AuditCSRFRejected,
		Details:   "token: " + prefix + "...",
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	return false
}
