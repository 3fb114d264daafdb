package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sistema-escolar/escuela-backend/internal/model"
)

// MemoryAccountRepository is a map-backed credential store with the same
// contract as AccountRepository. Returned accounts are copies.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[int64]*model.Account
	nextID   int64
	now      func() time.Time

	// Err, when set, is returned by every call. Used to simulate an
	// unavailable store.
	Err error
}

// NewMemoryAccountRepository creates an empty MemoryAccountRepository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[int64]*model.Account),
		nextID:   1,
		now:      time.Now,
	}
}

func (r *MemoryAccountRepository) FindActiveByUsernameAndRole(ctx context.Context, username string, role model.Role) (*model.Account, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.Username == username && a.Role == role && a.Active() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryAccountRepository) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryAccountRepository) TouchLastSeen(ctx context.Context, id int64) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	now := r.now()
	a.LastSeenAt = &now
	return nil
}

func (r *MemoryAccountRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	if err := r.check(ctx); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.Username == username || strings.EqualFold(a.Email, strings.TrimSpace(email)) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryAccountRepository) Create(ctx context.Context, a *model.Account) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Username == a.Username || strings.EqualFold(existing.Email, a.Email) {
			return ErrDuplicate
		}
	}
	if a.Status == "" {
		a.Status = model.AccountActive
	}
	a.ID = r.nextID
	r.nextID++
	a.CreatedAt = r.now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *MemoryAccountRepository) SetStatus(ctx context.Context, id int64, status model.AccountStatus) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = r.now()
	return nil
}

func (r *MemoryAccountRepository) check(ctx context.Context) error {
	if r.Err != nil {
		return r.Err
	}
	return ctx.Err()
}
