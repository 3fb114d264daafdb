package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. It is used by tests and by
// single-instance deployments with SESSION_BACKEND=memory.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]*Record
	byAccount map[int64]map[string]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*Record),
		byAccount: make(map[int64]map[string]struct{}),
	}
}

func (s *MemoryStore) Save(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.records[rec.ID]; ok && prev.AccountID != rec.AccountID {
		s.unindex(prev.AccountID, rec.ID)
	}
	cp := *rec
	s.records[rec.ID] = &cp
	s.index(rec.AccountID, rec.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Touch(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if at.After(rec.LastActivity) {
		rec.LastActivity = at
	}
	return nil
}

func (s *MemoryStore) SetCSRF(ctx context.Context, id, token string, issuedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.CSRFToken = token
	rec.CSRFIssuedAt = issuedAt
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(id)
	return nil
}

func (s *MemoryStore) Rename(ctx context.Context, oldID, newID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[oldID]
	if !ok {
		return ErrNotFound
	}
	s.deleteLocked(oldID)
	rec.ID = newID
	rec.RotatedAt = at
	s.records[newID] = rec
	s.index(rec.AccountID, newID)
	return nil
}

func (s *MemoryStore) DeleteByAccount(ctx context.Context, accountID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byAccount[accountID]
	n := 0
	for id := range ids {
		delete(s.records, id)
		n++
	}
	delete(s.byAccount, accountID)
	return n, nil
}

// Sweep drops records idle longer than timeout and returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time, timeout time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, rec := range s.records {
		if rec.idleSince(now, timeout) {
			s.deleteLocked(id)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryStore) deleteLocked(id string) {
	rec, ok := s.records[id]
	if !ok {
		return
	}
	delete(s.records, id)
	s.unindex(rec.AccountID, id)
}

func (s *MemoryStore) index(accountID int64, id string) {
	if accountID == 0 {
		return
	}
	set, ok := s.byAccount[accountID]
	if !ok {
		set = make(map[string]struct{})
		s.byAccount[accountID] = set
	}
	set[id] = struct{}{}
}

func (s *MemoryStore) unindex(accountID int64, id string) {
	if accountID == 0 {
		return
	}
	set := s.byAccount[accountID]
	delete(set, id)
	if len(set) == 0 {
		delete(s.byAccount, accountID)
	}
}
