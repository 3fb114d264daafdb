package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sistema-escolar/escuela-backend/internal/metrics"
	"github.com/sistema-escolar/escuela-backend/internal/model"
)

// Manager applies the session lifecycle on top of a Store: idle timeout,
// id regeneration and bounded store calls.
type Manager struct {
	store        Store
	idleTimeout  time.Duration
	rotateEvery  time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

// NewManager creates a Manager. rotateEvery <= 0 disables periodic rotation.
func NewManager(store Store, idleTimeout, rotateEvery, storeTimeout time.Duration) *Manager {
	return &Manager{
		store:        store,
		idleTimeout:  idleTimeout,
		rotateEvery:  rotateEvery,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// SetClock replaces the time source. Tests use it to simulate idle periods.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// IdleTimeout returns the configured idle timeout.
func (m *Manager) IdleTimeout() time.Duration {
	return m.idleTimeout
}

// Create starts a new session bound to acct.
func (m *Manager) Create(ctx context.Context, acct *model.Account) (*Record, error) {
	rec, err := m.newRecord()
	if err != nil {
		return nil, err
	}
	bind(rec, acct)

	if err := m.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateAnonymous starts a session slot that is not bound to any account.
// It only carries a CSRF token.
func (m *Manager) CreateAnonymous(ctx context.Context) (*Record, error) {
	rec, err := m.newRecord()
	if err != nil {
		return nil, err
	}
	if err := m.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Establish binds acct to the caller's session under a fresh id. An anonymous
// slot presented as currentID is renamed so the old id stops resolving; any
// other prior session is destroyed and a new one created. The CSRF token is
// always cleared.
func (m *Manager) Establish(ctx context.Context, currentID string, acct *model.Account) (*Record, error) {
	if currentID != "" {
		prev, err := m.Resolve(ctx, currentID)
		switch {
		case err == nil && !prev.Authenticated():
			newID, err := m.Regenerate(ctx, currentID)
			if err != nil {
				return nil, err
			}
			now := m.now()
			rec := &Record{
				ID:           newID,
				CreatedAt:    now,
				LastActivity: now,
				RotatedAt:    now,
			}
			bind(rec, acct)
			if err := m.save(ctx, rec); err != nil {
				return nil, err
			}
			return rec, nil
		case err == nil:
			if err := m.Destroy(ctx, currentID); err != nil {
				return nil, err
			}
		case !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrExpired):
			return nil, err
		}
	}
	return m.Create(ctx, acct)
}

// Resolve returns the live record for id. A record idle past the timeout is
// destroyed and ErrExpired returned; later calls then report ErrNotFound.
func (m *Manager) Resolve(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	if rec.idleSince(m.now(), m.idleTimeout) {
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("destroy expired session: %w", err)
		}
		metrics.RecordSessionExpired()
		return nil, ErrExpired
	}
	return rec, nil
}

// Touch records activity on the session.
func (m *Manager) Touch(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	if err := m.store.Touch(ctx, id, m.now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Destroy removes the session. Unknown ids are ignored.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// Regenerate moves the session to a new id and returns it. The old id
// stops resolving before Regenerate returns.
func (m *Manager) Regenerate(ctx context.Context, oldID string) (string, error) {
	newID, err := NewID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	if err := m.store.Rename(ctx, oldID, newID, m.now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("regenerate session id: %w", err)
	}
	return newID, nil
}

// SetCSRF stores token on a live session. It returns ErrNotFound when the
// id was rotated or destroyed in the meantime.
func (m *Manager) SetCSRF(ctx context.Context, id, token string, issuedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	if err := m.store.SetCSRF(ctx, id, token, issuedAt); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set csrf token: %w", err)
	}
	return nil
}

// DestroyAccount removes every session bound to accountID.
func (m *Manager) DestroyAccount(ctx context.Context, accountID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	n, err := m.store.DeleteByAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("destroy account sessions: %w", err)
	}
	return n, nil
}

// NeedsRotation reports whether an authenticated record is due for
// periodic id regeneration.
func (m *Manager) NeedsRotation(rec *Record) bool {
	if m.rotateEvery <= 0 || !rec.Authenticated() {
		return false
	}
	last := rec.RotatedAt
	if last.IsZero() {
		last = rec.CreatedAt
	}
	return m.now().Sub(last) >= m.rotateEvery
}

func (m *Manager) newRecord() (*Record, error) {
	id, err := NewID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := m.now()
	return &Record{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		RotatedAt:    now,
	}, nil
}

func (m *Manager) save(ctx context.Context, rec *Record) error {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	if err := m.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func bind(rec *Record, acct *model.Account) {
	rec.AccountID = acct.ID
	rec.Username = acct.Username
	rec.Nombre = acct.Nombre
	rec.Apellido = acct.Apellido
	rec.Email = acct.Email
	rec.Role = acct.Role
	rec.CSRFToken = ""
	rec.CSRFIssuedAt = time.Time{}
}
