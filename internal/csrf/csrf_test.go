package csrf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/session"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T) (*Issuer, *session.Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	m := session.NewManager(session.NewMemoryStore(), time.Hour, 5*time.Minute, time.Second)
	m.SetClock(clock.Now)
	return NewIssuer(m, 30*time.Minute), m, clock
}

func anonymous(t *testing.T, m *session.Manager) string {
	t.Helper()
	rec, err := m.CreateAnonymous(context.Background())
	if err != nil {
		t.Fatalf("CreateAnonymous: %v", err)
	}
	return rec.ID
}

func TestIssueIsIdempotentWithinTTL(t *testing.T) {
	issuer, m, clock := setup(t)
	ctx := context.Background()
	sid := anonymous(t, m)

	first, err := issuer.Issue(ctx, sid)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(first.Value) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(first.Value))
	}
	if !first.Fresh || first.ExpiresIn != 1800 {
		t.Errorf("unexpected first token: %+v", first)
	}

	clock.Advance(10 * time.Minute)
	second, _ := issuer.Issue(ctx, sid)
	if second.Value != first.Value {
		t.Error("token should be stable within the TTL")
	}
	if second.Fresh || second.ExpiresIn != 1200 {
		t.Errorf("unexpected second token: %+v", second)
	}

	clock.Advance(21 * time.Minute)
	third, _ := issuer.Issue(ctx, sid)
	if third.Value == first.Value {
		t.Error("token should be replaced after expiry")
	}
}

func TestIssueUnknownSession(t *testing.T) {
	issuer, _, _ := setup(t)
	if _, err := issuer.Issue(context.Background(), "ghost"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	issuer, m, clock := setup(t)
	ctx := context.Background()

	sid := anonymous(t, m)
	other := anonymous(t, m)

	if issuer.Validate(ctx, sid, "deadbeef") {
		t.Error("no token issued: must be false")
	}

	tok, _ := issuer.Issue(ctx, sid)
	otherTok, _ := issuer.Issue(ctx, other)

	altered := []byte(tok.Value)
	if altered[10] == 'a' {
		altered[10] = 'b'
	} else {
		altered[10] = 'a'
	}

	tests := []struct {
		name      string
		sessionID string
		token     string
		want      bool
	}{
		{"exact match", sid, tok.Value, true},
		{"one character altered", sid, string(altered), false},
		{"token of another session", sid, otherTok.Value, false},
		{"token presented on another session", other, tok.Value, false},
		{"empty token", sid, "", false},
		{"no session", "", tok.Value, false},
		{"unknown session", "ghost", tok.Value, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := issuer.Validate(ctx, tt.sessionID, tt.token); got != tt.want {
				t.Errorf("Validate = %v, want %v", got, tt.want)
			}
		})
	}

	clock.Advance(31 * time.Minute)
	if issuer.Validate(ctx, sid, tok.Value) {
		t.Error("expired token must be rejected")
	}
	fresh, _ := issuer.Issue(ctx, sid)
	if !fresh.Fresh || fresh.Value == tok.Value {
		t.Errorf("expected a replacement token after expiry, got %+v", fresh)
	}
	if issuer.Validate(ctx, sid, tok.Value) {
		t.Error("replaced token must stay rejected")
	}
}

func TestValidateAfterLoginRequiresFreshToken(t *testing.T) {
	issuer, m, _ := setup(t)
	ctx := context.Background()

	sid := anonymous(t, m)
	tok, _ := issuer.Issue(ctx, sid)

	newID, err := m.Regenerate(ctx, sid)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if issuer.Validate(ctx, sid, tok.Value) {
		t.Error("old session id must not validate")
	}
	if !issuer.Validate(ctx, newID, tok.Value) {
		t.Error("periodic rotation carries the token to the new id")
	}
}

// racingStore runs onGet once, right after the first successful Get, to
// simulate a concurrent request changing the session mid-flight.
type racingStore struct {
	*session.MemoryStore
	onGet func(id string)
}

func (s *racingStore) Get(ctx context.Context, id string) (*session.Record, error) {
	rec, err := s.MemoryStore.Get(ctx, id)
	if err == nil && s.onGet != nil {
		hook := s.onGet
		s.onGet = nil
		hook(id)
	}
	return rec, err
}

func racingSetup(t *testing.T) (*Issuer, *session.Manager, *racingStore, string) {
	t.Helper()
	store := &racingStore{MemoryStore: session.NewMemoryStore()}
	m := session.NewManager(store, time.Hour, 5*time.Minute, time.Second)
	rec, err := m.Create(context.Background(), &model.Account{
		ID: 7, Username: "admin", Role: model.RoleAdmin, Status: model.AccountActive,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return NewIssuer(m, 30*time.Minute), m, store, rec.ID
}

func TestIssueDoesNotResurrectRotatedSession(t *testing.T) {
	issuer, m, store, oldID := racingSetup(t)
	ctx := context.Background()

	store.onGet = func(id string) {
		if err := store.Rename(ctx, id, "rotated-id", time.Now()); err != nil {
			t.Fatalf("Rename: %v", err)
		}
	}

	if _, err := issuer.Issue(ctx, oldID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Resolve(ctx, oldID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("old id must stay gone after rotation, got %v", err)
	}
	rec, err := m.Resolve(ctx, "rotated-id")
	if err != nil {
		t.Fatalf("rotated id: %v", err)
	}
	if rec.CSRFToken != "" {
		t.Error("token must not be written to the rotated record")
	}
	if store.Len() != 1 {
		t.Errorf("expected one live session, got %d", store.Len())
	}
}

func TestIssueDoesNotResurrectDestroyedSession(t *testing.T) {
	issuer, m, store, sid := racingSetup(t)
	ctx := context.Background()

	store.onGet = func(id string) {
		if err := store.Delete(ctx, id); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}

	if _, err := issuer.Issue(ctx, sid); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Resolve(ctx, sid); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("logged-out id must not resolve again, got %v", err)
	}
}
