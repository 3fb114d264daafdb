package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/repository"
)

// AttemptLog reads recorded login attempts.
type AttemptLog interface {
	RecentLoginAttempts(ctx context.Context, username string, limit int) ([]model.LoginAttempt, error)
}

// SetAttemptLog sets where LoginAttempts reads from.
func (s *AuthService) SetAttemptLog(log AttemptLog) {
	s.attempts = log
}

// DisableAccount soft-disables an account and destroys all of its sessions.
// Only admins may call it, and never on their own account.
func (s *AuthService) DisableAccount(ctx context.Context, actorSessionID string, accountID int64, meta RequestMeta) (int, error) {
	actor, err := s.sessions.Resolve(ctx, actorSessionID)
	if err != nil || !actor.Authenticated() || !actor.Role.AtLeast(model.RoleAdmin) {
		return 0, ErrForbidden
	}
	if actor.AccountID == accountID {
		return 0, ErrForbidden
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	target, err := s.accounts.GetByID(storeCtx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrAccountNotFound
		}
		s.log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to load account")
		return 0, ErrSystem
	}

	if target.Active() {
		if err := s.accounts.SetStatus(storeCtx, accountID, model.AccountDisabled); err != nil {
			s.log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to disable account")
			return 0, ErrSystem
		}
	}

	n, err := s.sessions.DestroyAccount(ctx, accountID)
	if err != nil {
		s.log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to destroy account sessions")
		return 0, ErrSystem
	}

	s.audit.Record(ctx, model.AuditEvent{
		AccountID: actor.AccountID,
		Username:  actor.Username,
		Action:    model.AuditAccountDisabled,
		Success:   true,
		Details:   "Cuenta " + strconv.FormatInt(accountID, 10) + " (" + target.Username + ") desactivada",
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	s.log.Info().Int64("account_id", accountID).Int("sessions", n).Msg("Account disabled")
	return n, nil
}

// LoginAttempts returns the latest recorded attempts for a username.
// Without an attempt log it returns an empty list.
func (s *AuthService) LoginAttempts(ctx context.Context, username string, limit int) ([]model.LoginAttempt, error) {
	if username == "" || limit <= 0 {
		return nil, ErrValidation
	}
	if s.attempts == nil {
		return []model.LoginAttempt{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	attempts, err := s.attempts.RecentLoginAttempts(ctx, username, limit)
	if err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("Failed to read login attempts")
		return nil, ErrSystem
	}
	return attempts, nil
}
