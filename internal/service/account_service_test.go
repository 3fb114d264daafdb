package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/session"
)

type stubAttemptLog struct {
	attempts []model.LoginAttempt
	err      error
}

func (s *stubAttemptLog) RecentLoginAttempts(_ context.Context, _ string, limit int) ([]model.LoginAttempt, error) {
	if len(s.attempts) > limit {
		return s.attempts[:limit], s.err
	}
	return s.attempts, s.err
}

func TestDisableAccountDestroysSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "admin", "admin123", model.RoleAdmin)
	teacher := f.seed(t, "profe1", "Clave123", model.RoleTeacher)

	admin, _ := f.login("admin", "admin123", "admin")
	s1, _ := f.login("profe1", "Clave123", "profesor")
	s2, _ := f.login("profe1", "Clave123", "profesor")

	n, err := f.svc.DisableAccount(ctx, admin.Session.ID, teacher.ID, RequestMeta{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("DisableAccount: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 sessions destroyed, got %d", n)
	}
	for _, id := range []string{s1.Session.ID, s2.Session.ID} {
		if _, err := f.sessions.Resolve(ctx, id); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("session %s should be destroyed, got %v", id, err)
		}
	}
	if _, err := f.login("profe1", "Clave123", "profesor"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("disabled account must not log in, got %v", err)
	}
	if f.sink.count(model.AuditAccountDisabled) != 1 {
		t.Error("disabling should be audited")
	}
}

func TestDisableAccountRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "admin", "admin123", model.RoleAdmin)
	teacher := f.seed(t, "profe1", "Clave123", model.RoleTeacher)
	student := f.seed(t, "alumno1", "Clave123", model.RoleStudent)

	res, _ := f.login("profe1", "Clave123", "profesor")
	if _, err := f.svc.DisableAccount(ctx, res.Session.ID, student.ID, RequestMeta{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("teacher: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.DisableAccount(ctx, "", student.ID, RequestMeta{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("anonymous: expected ErrForbidden, got %v", err)
	}

	admin, _ := f.login("admin", "admin123", "admin")
	if _, err := f.svc.DisableAccount(ctx, admin.Session.ID, admin.User.ID, RequestMeta{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("self: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.DisableAccount(ctx, admin.Session.ID, 9999, RequestMeta{}); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("unknown: expected ErrAccountNotFound, got %v", err)
	}

	acct, _ := f.accounts.GetByID(ctx, teacher.ID)
	if !acct.Active() {
		t.Error("teacher account should be untouched")
	}
}

func TestLoginAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.LoginAttempts(ctx, "admin", 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("without a log: got %v, %v", got, err)
	}

	f.svc.SetAttemptLog(&stubAttemptLog{attempts: make([]model.LoginAttempt, 30)})
	got, err = f.svc.LoginAttempts(ctx, "admin", 20)
	if err != nil || len(got) != 20 {
		t.Errorf("expected 20 attempts, got %d, %v", len(got), err)
	}

	if _, err := f.svc.LoginAttempts(ctx, "", 20); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	f.svc.SetAttemptLog(&stubAttemptLog{err: errors.New("relation intentos_login does not exist")})
	if _, err := f.svc.LoginAttempts(ctx, "admin", 20); err != ErrSystem {
		t.Errorf("expected ErrSystem, got %v", err)
	}
}
