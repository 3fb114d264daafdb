package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sistema-escolar/escuela-backend/internal/config"
	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/repository"
)

// RegisterInput is a self-service registration request. Format checks
// (lengths, charsets, email) are done by the binding layer.
type RegisterInput struct {
	Nombre   string
	Apellido string
	Email    string
	Username string
	Password string
	Telefono string
	Role     string
	Meta     RequestMeta
}

// Register creates an active student or teacher account and returns its id.
// Attempts that pass validation count towards the per-IP limit.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (int64, error) {
	role, ok := model.ParseRole(in.Role)
	if !ok || role == model.RoleAdmin {
		return 0, ErrValidation
	}
	if score, suggestions := PasswordStrength(in.Password); score < MinPasswordScore {
		return 0, &WeakPasswordError{Suggestions: suggestions}
	}

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if err := s.registerAllowed(ctx, in.Meta.IP); err != nil {
		return 0, err
	}

	id, err := s.createAccount(ctx, username, email, role, in)
	s.audit.Record(ctx, model.AuditEvent{
		AccountID: id,
		Username:  username,
		Action:    registerAction(err),
		Success:   err == nil,
		Details:   "Registro de " + string(role),
		IP:        in.Meta.IP,
		UserAgent: in.Meta.UserAgent,
	})
	if err != nil {
		return 0, err
	}

	s.log.Info().Int64("account_id", id).Str("username", username).Msg("Account registered")
	return id, nil
}

// registerAllowed counts the attempt and rejects it once the IP is over its limit.
func (s *AuthService) registerAllowed(ctx context.Context, ip string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	n, retryAfter, err := s.counter.Hit(ctx, config.CacheKey.RegisterAttemptsKey(ip), s.cfg.RegisterWindow)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to count registration attempt")
		return ErrSystem
	}
	if n > s.cfg.RegisterMaxAttempts {
		return &RateLimitError{RetryAfter: retryAfter}
	}
	return nil
}

func (s *AuthService) createAccount(ctx context.Context, username, email string, role model.Role, in RegisterInput) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	exists, err := s.accounts.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to check account uniqueness")
		return 0, ErrSystem
	}
	if exists {
		return 0, ErrDuplicateAccount
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to hash password")
		return 0, ErrSystem
	}

	acct := &model.Account{
		Username:     username,
		PasswordHash: hash,
		Nombre:       strings.TrimSpace(in.Nombre),
		Apellido:     strings.TrimSpace(in.Apellido),
		Email:        email,
		Telefono:     strings.TrimSpace(in.Telefono),
		Role:         role,
		Status:       model.AccountActive,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return 0, ErrDuplicateAccount
		}
		s.log.Error().Err(err).Msg("Failed to create account")
		return 0, ErrSystem
	}
	return acct.ID, nil
}

func registerAction(err error) model.AuditAction {
	if err != nil {
		return model.AuditRegisterFailed
	}
	return model.AuditRegister
}
