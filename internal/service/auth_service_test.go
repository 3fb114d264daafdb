package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sistema-escolar/escuela-backend/internal/model"
	"github.com/sistema-escolar/escuela-backend/internal/session"
)

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	admin := f.seed(t, "admin", "admin123", model.RoleAdmin)

	res, err := f.login("admin", "admin123", "admin")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.Role != model.RoleAdmin || res.User.ID != admin.ID {
		t.Errorf("unexpected user: %+v", res.User)
	}
	if res.Redirect != "dashboard.php" {
		t.Errorf("Redirect = %q", res.Redirect)
	}

	status := f.svc.CheckSession(context.Background(), res.Session.ID)
	if !status.LoggedIn || status.User.Username != "admin" {
		t.Errorf("session should be logged in: %+v", status)
	}

	stored, _ := f.accounts.GetByID(context.Background(), admin.ID)
	if stored.LastSeenAt == nil {
		t.Error("last seen should be updated on login")
	}
	if ev := f.sink.last(); ev.Action != model.AuditLogin || !ev.Success || ev.IP != "10.0.0.1" {
		t.Errorf("unexpected audit event: %+v", ev)
	}
}

func TestLoginAcceptsEnglishRoleAlias(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "mgarcia", "Secreto1", model.RoleTeacher)

	if _, err := f.login("mgarcia", "Secreto1", "teacher"); err != nil {
		t.Fatalf("Login with alias: %v", err)
	}
}

func TestLoginIssuesDistinctSessionIDs(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin", "admin123", model.RoleAdmin)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		res, err := f.login("admin", "admin123", "admin")
		if err != nil {
			t.Fatalf("Login #%d: %v", i+1, err)
		}
		if seen[res.Session.ID] {
			t.Fatalf("session id reused: %s", res.Session.ID)
		}
		seen[res.Session.ID] = true
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin", "admin123", model.RoleAdmin)
	disabled := f.seed(t, "baja", "admin123", model.RoleStudent)
	_ = f.accounts.SetStatus(context.Background(), disabled.ID, model.AccountDisabled)

	tests := []struct {
		name     string
		username string
		password string
		role     string
	}{
		{"wrong password", "admin", "nope", "admin"},
		{"wrong role", "admin", "admin123", "alumno"},
		{"unknown user", "ghost", "admin123", "admin"},
		{"disabled account", "baja", "admin123", "alumno"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.login(tt.username, tt.password, tt.role)
			if err != ErrInvalidCredentials {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
			if res != nil {
				t.Errorf("expected no result, got %+v", res)
			}
		})
	}
	if n := f.sink.count(model.AuditLoginFailed); n != len(tests) {
		t.Errorf("expected %d failed-login audits, got %d", len(tests), n)
	}
}

func TestLoginValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name, username, password, role string
	}{
		{"empty username", "  ", "x", "admin"},
		{"empty password", "admin", "", "admin"},
		{"unknown role", "admin", "x", "director"},
		{"empty role", "admin", "x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.login(tt.username, tt.password, tt.role); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestLoginLockout(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin", "admin123", model.RoleAdmin)

	for i := 0; i < 5; i++ {
		if _, err := f.login("admin", "wrong", "admin"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := f.login("admin", "admin123", "admin")
	var rl *RateLimitError
	if !errors.As(err, &rl) || !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.RetryAfter <= 0 || rl.RetryAfter > 5*time.Minute {
		t.Errorf("RetryAfter = %v", rl.RetryAfter)
	}
	if f.sink.count(model.AuditLoginLocked) != 1 {
		t.Error("locked attempt should be audited")
	}

	f.clock.Advance(5 * time.Minute)
	if _, err := f.login("admin", "admin123", "admin"); err != nil {
		t.Errorf("login should succeed after the lockout, got %v", err)
	}
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin", "admin123", model.RoleAdmin)

	for round := 0; round < 2; round++ {
		for i := 0; i < 4; i++ {
			_, _ = f.login("admin", "wrong", "admin")
		}
		if _, err := f.login("admin", "admin123", "admin"); err != nil {
			t.Fatalf("round %d: expected success, got %v", round+1, err)
		}
	}
}

func TestLoginStoreFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.accounts.Err = errors.New("dial tcp 10.0.0.5:5432: connection refused")

	_, err := f.login("admin", "admin123", "admin")
	if err != ErrSystem {
		t.Fatalf("expected ErrSystem, got %v", err)
	}
	if strings.Contains(err.Error(), "5432") {
		t.Error("store details must not cross the service boundary")
	}
}

func TestLoginRegeneratesCallerSession(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin", "admin123", model.RoleAdmin)
	ctx := context.Background()

	anon, err := f.sessions.CreateAnonymous(ctx)
	if err != nil {
		t.Fatalf("CreateAnonymous: %v", err)
	}

	res, err := f.svc.Login(ctx, LoginInput{
		Username:  "admin",
		Password:  "admin123",
		Role:      "admin",
		SessionID: anon.ID,
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Session.ID == anon.ID {
		t.Fatal("login must change the session id")
	}
	if _, err := f.sessions.Resolve(ctx, anon.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("pre-login id must fail closed, got %v", err)
	}
}

func TestLoginSurvivesAuditSinkFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin", "admin123", model.RoleAdmin)
	f.sink.err = errors.New("audit table missing")

	if _, err := f.login("admin", "admin123", "admin"); err != nil {
		t.Fatalf("audit failures must not fail login: %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin", "admin123", model.RoleAdmin)
	ctx := context.Background()

	res, _ := f.login("admin", "admin123", "admin")

	f.svc.Logout(ctx, res.Session.ID, RequestMeta{})
	f.svc.Logout(ctx, res.Session.ID, RequestMeta{})
	f.svc.Logout(ctx, "never-issued", RequestMeta{})
	f.svc.Logout(ctx, "", RequestMeta{})

	if f.svc.CheckSession(ctx, res.Session.ID).LoggedIn {
		t.Error("session should be gone after logout")
	}
	if n := f.sink.count(model.AuditLogout); n != 1 {
		t.Errorf("expected one logout audit, got %d", n)
	}
}

func TestCheckSessionAfterIdleTimeout(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin", "admin123", model.RoleAdmin)
	ctx := context.Background()

	res, _ := f.login("admin", "admin123", "admin")

	f.clock.Advance(time.Hour + time.Minute)

	if status := f.svc.CheckSession(ctx, res.Session.ID); status.LoggedIn || status.User != nil {
		t.Errorf("expected logged out, got %+v", status)
	}
	if _, err := f.sessions.Resolve(ctx, res.Session.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expired session must not resurrect, got %v", err)
	}
}

func TestCheckSessionAnonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	anon, _ := f.sessions.CreateAnonymous(ctx)
	for _, id := range []string{"", "ghost", anon.ID} {
		if f.svc.CheckSession(ctx, id).LoggedIn {
			t.Errorf("CheckSession(%q) should be logged out", id)
		}
	}
}

func TestAuthorizeIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seed(t, "alumno1", "Clave123", model.RoleStudent)
	f.seed(t, "profe1", "Clave123", model.RoleTeacher)
	f.seed(t, "admin", "Clave123", model.RoleAdmin)

	ids := map[string]string{}
	for _, u := range []struct{ name, role string }{{"alumno1", "alumno"}, {"profe1", "profesor"}, {"admin", "admin"}} {
		res, err := f.login(u.name, "Clave123", u.role)
		if err != nil {
			t.Fatalf("login %s: %v", u.name, err)
		}
		ids[u.role] = res.Session.ID
	}
	anon, _ := f.sessions.CreateAnonymous(ctx)
	ids["anonymous"] = anon.ID
	ids["unknown"] = "ghost"

	want := map[string][3]bool{
		"alumno":    {true, false, false},
		"profesor":  {true, true, false},
		"admin":     {true, true, true},
		"anonymous": {false, false, false},
		"unknown":   {false, false, false},
	}

	for name, sid := range ids {
		var got [3]bool
		for i, required := range model.Roles {
			got[i] = f.svc.Authorize(ctx, sid, required)
		}
		if got != want[name] {
			t.Errorf("%s: got %v, want %v", name, got, want[name])
		}
		if !got[0] && (got[1] || got[2]) {
			t.Errorf("%s: authorization is not monotonic: %v", name, got)
		}
	}
}

func TestAuthorizeExpiredSession(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "admin", "admin123", model.RoleAdmin)

	res, _ := f.login("admin", "admin123", "admin")
	f.clock.Advance(2 * time.Hour)

	if f.svc.Authorize(context.Background(), res.Session.ID, model.RoleStudent) {
		t.Error("expired session must not be authorized")
	}
}
