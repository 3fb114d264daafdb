package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sistema-escolar/escuela-backend/internal/config"
	"github.com/sistema-escolar/escuela-backend/internal/metrics"
	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/ratelimit"
	"github.com/sistema-escolar/escuela-backend/internal/repository"
	"github.com/sistema-escolar/escuela-backend/internal/session"
)

// AccountStore is the credential store used by the auth service.
type AccountStore interface {
	FindActiveByUsernameAndRole(ctx context.Context, username string, role model.Role) (*model.Account, error)
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	TouchLastSeen(ctx context.Context, id int64) error
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, a *model.Account) error
	SetStatus(ctx context.Context, id int64, status model.AccountStatus) error
}

// LoginInput is a login request with its origin and the caller's current session.
type LoginInput struct {
	Username  string
	Password  string
	Role      string
	SessionID string
	Meta      RequestMeta
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Session  *session.Record
	User     *model.PublicUser
	Redirect string
}

// SessionStatus is the outcome of CheckSession.
type SessionStatus struct {
	LoggedIn bool
	User     *model.PublicUser
}

// AuthService handles login, logout, session checks and role authorization.
type AuthService struct {
	cfg      *config.Config
	accounts AccountStore
	sessions *session.Manager
	counter  ratelimit.Counter
	hasher   *PasswordHasher
	audit    *Auditor
	attempts AttemptLog
	log      zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	cfg *config.Config,
	accounts AccountStore,
	sessions *session.Manager,
	counter ratelimit.Counter,
	hasher *PasswordHasher,
	audit *Auditor,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		cfg:      cfg,
		accounts: accounts,
		sessions: sessions,
		counter:  counter,
		hasher:   hasher,
		audit:    audit,
		log:      log.With().Str("component", "auth_service").Logger(),
	}
}

// Login verifies credentials for the selected role and binds the account
// to a freshly generated session id. Unknown usernames, wrong passwords and
// role mismatches all return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, ErrValidation
	}
	role, ok := model.ParseRole(in.Role)
	if !ok {
		return nil, ErrValidation
	}

	lockKey := config.CacheKey.LoginLockKey(in.Meta.IP, username)
	failKey := config.CacheKey.LoginFailuresKey(in.Meta.IP, username)

	locked, retryAfter, err := s.peek(ctx, lockKey)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read login lockout")
		return nil, ErrSystem
	}
	if locked > 0 {
		s.audit.Record(ctx, model.AuditEvent{
			Username:  username,
			Action:    model.AuditLoginLocked,
			Reason:    model.ReasonLocked,
			IP:        in.Meta.IP,
			UserAgent: in.Meta.UserAgent,
		})
		metrics.RecordLogin(string(role), "locked")
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}

	acct, err := s.findAccount(ctx, username, role)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error().Err(err).Str("username", username).Msg("Failed to look up account")
			metrics.RecordLogin(string(role), "error")
			return nil, ErrSystem
		}
		s.hasher.VerifyDummy(in.Password)
		return nil, s.loginFailed(ctx, username, role, failKey, lockKey, in.Meta)
	}

	if err := s.hasher.Verify(acct.PasswordHash, in.Password); err != nil {
		return nil, s.loginFailed(ctx, username, role, failKey, lockKey, in.Meta)
	}

	rec, err := s.sessions.Establish(ctx, in.SessionID, acct)
	if err != nil {
		s.log.Error().Err(err).Int64("account_id", acct.ID).Msg("Failed to establish session")
		metrics.RecordLogin(string(role), "error")
		return nil, ErrSystem
	}

	s.touchLastSeen(ctx, acct.ID)
	s.resetCounter(ctx, failKey)

	s.audit.Record(ctx, model.AuditEvent{
		AccountID: acct.ID,
		Username:  acct.Username,
		Action:    model.AuditLogin,
		Success:   true,
		Details:   "Usuario inició sesión",
		IP:        in.Meta.IP,
		UserAgent: in.Meta.UserAgent,
	})
	metrics.RecordLogin(string(role), "success")

	return &LoginResult{
		Session:  rec,
		User:     acct.PublicUser(),
		Redirect: s.cfg.DashboardPath,
	}, nil
}

// loginFailed counts a failure towards the lockout and returns the generic error.
func (s *AuthService) loginFailed(ctx context.Context, username string, role model.Role, failKey, lockKey string, meta RequestMeta) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	n, _, err := s.counter.Hit(ctx, failKey, s.cfg.LoginLockout)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to count login failure")
	} else if n >= s.cfg.LoginMaxFailures {
		if _, _, err := s.counter.Hit(ctx, lockKey, s.cfg.LoginLockout); err != nil {
			s.log.Warn().Err(err).Msg("Failed to set login lockout")
		}
		_ = s.counter.Reset(ctx, failKey)
		s.log.Warn().Str("username", username).Str("ip", meta.IP).Msg("Login locked after repeated failures")
	}

	s.audit.Record(ctx, model.AuditEvent{
		Username:  username,
		Action:    model.AuditLoginFailed,
		Reason:    model.ReasonInvalidCredentials,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	metrics.RecordLogin(string(role), model.ReasonInvalidCredentials)
	return ErrInvalidCredentials
}

// Logout destroys the session. It is idempotent and never fails; store
// errors are logged.
func (s *AuthService) Logout(ctx context.Context, sessionID string, meta RequestMeta) {
	if sessionID == "" {
		return
	}

	rec, err := s.sessions.Resolve(ctx, sessionID)
	if err == nil && rec.Authenticated() {
		s.audit.Record(ctx, model.AuditEvent{
			AccountID: rec.AccountID,
			Username:  rec.Username,
			Action:    model.AuditLogout,
			Success:   true,
			Details:   "Usuario cerró sesión",
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
		})
	}

	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		s.log.Error().Err(err).Msg("Failed to destroy session on logout")
	}
}

// CheckSession reports whether the session is authenticated. Absent,
// expired and unreadable sessions all report LoggedIn=false.
func (s *AuthService) CheckSession(ctx context.Context, sessionID string) SessionStatus {
	rec, err := s.sessions.Resolve(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) && !errors.Is(err, session.ErrExpired) {
			s.log.Error().Err(err).Msg("Failed to resolve session")
		}
		return SessionStatus{}
	}
	if !rec.Authenticated() {
		return SessionStatus{}
	}
	return SessionStatus{LoggedIn: true, User: rec.User()}
}

// Authorize reports whether the session's role is at least required.
// Anonymous, expired and unknown sessions are never authorized.
func (s *AuthService) Authorize(ctx context.Context, sessionID string, required model.Role) bool {
	rec, err := s.sessions.Resolve(ctx, sessionID)
	if err != nil || !rec.Authenticated() {
		return false
	}
	return rec.Role.AtLeast(required)
}

func (s *AuthService) findAccount(ctx context.Context, username string, role model.Role) (*model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.accounts.FindActiveByUsernameAndRole(ctx, username, role)
}

func (s *AuthService) touchLastSeen(ctx context.Context, accountID int64) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.accounts.TouchLastSeen(ctx, accountID); err != nil {
		s.log.Warn().Err(err).Int64("account_id", accountID).Msg("Failed to update last seen")
	}
}

func (s *AuthService) peek(ctx context.Context, key string) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.counter.Peek(ctx, key)
}

func (s *AuthService) resetCounter(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.counter.Reset(ctx, key); err != nil {
		s.log.Warn().Err(err).Msg("Failed to reset login failures")
	}
}
