package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sistema-escolar/escuela-backend/internal/config"
	"github.com/sistema-escolar/escuela-backend/internal/csrf"
	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/ratelimit"
	"github.com/sistema-escolar/escuela-backend/internal/repository"
	"github.com/sistema-escolar/escuela-backend/internal/session"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.AuditEvent
	err    error
}

func (s *recordingSink) Name() string { return "test" }

func (s *recordingSink) Record(_ context.Context, ev model.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) last() model.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return model.AuditEvent{}
	}
	return s.events[len(s.events)-1]
}

func (s *recordingSink) count(action model.AuditAction) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Action == action {
			n++
		}
	}
	return n
}

type fixture struct {
	cfg      *config.Config
	svc      *AuthService
	csrf     *CSRFService
	accounts *repository.MemoryAccountRepository
	sessions *session.Manager
	store    *session.MemoryStore
	counter  *ratelimit.MemoryCounter
	hasher   *PasswordHasher
	sink     *recordingSink
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		DashboardPath:       "dashboard.php",
		StoreTimeout:        time.Second,
		SessionIdleTimeout:  time.Hour,
		SessionRotateEvery:  5 * time.Minute,
		CSRFTokenTTL:        30 * time.Minute,
		LoginMaxFailures:    5,
		LoginLockout:        5 * time.Minute,
		RegisterMaxAttempts: 3,
		RegisterWindow:      time.Hour,
	}

	clock := &fakeClock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}

	store := session.NewMemoryStore()
	sessions := session.NewManager(store, cfg.SessionIdleTimeout, cfg.SessionRotateEvery, cfg.StoreTimeout)
	sessions.SetClock(clock.Now)

	counter := ratelimit.NewMemoryCounter()
	counter.SetClock(clock.Now)

	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}

	sink := &recordingSink{}
	auditor := NewAuditor(zerolog.Nop(), time.Second, sink)
	accounts := repository.NewMemoryAccountRepository()

	return &fixture{
		cfg:      cfg,
		svc:      NewAuthService(cfg, accounts, sessions, counter, hasher, auditor, zerolog.Nop()),
		csrf:     NewCSRFService(csrf.NewIssuer(sessions, cfg.CSRFTokenTTL), sessions, auditor, zerolog.Nop()),
		accounts: accounts,
		sessions: sessions,
		store:    store,
		counter:  counter,
		hasher:   hasher,
		sink:     sink,
		clock:    clock,
	}
}

func (f *fixture) seed(t *testing.T, username, password string, role model.Role) *model.Account {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	acct := &model.Account{
		Username:     username,
		PasswordHash: hash,
		Nombre:       "Nombre",
		Apellido:     "Apellido",
		Email:        username + "@escuela.test",
		Role:         role,
		Status:       model.AccountActive,
	}
	if err := f.accounts.Create(context.Background(), acct); err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return acct
}

func (f *fixture) login(username, password, role string) (*LoginResult, error) {
	return f.svc.Login(context.Background(), LoginInput{
		Username: username,
		Password: password,
		Role:     role,
		Meta:     RequestMeta{IP: "10.0.0.1", UserAgent: "go-test"},
	})
}
