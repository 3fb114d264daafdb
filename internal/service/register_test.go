package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sistema-escolar/escuela-backend/internal/model"
)

func registerInput(username, email string) RegisterInput {
	return RegisterInput{
		Nombre:   "Lucía",
		Apellido: "Pérez",
		Email:    email,
		Username: username,
		Password: "Cuaderno7",
		Role:     "alumno",
		Meta:     RequestMeta{IP: "10.0.0.9", UserAgent: "go-test"},
	}
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)

	id, err := f.svc.Register(context.Background(), registerInput("lperez", "LPerez@Escuela.test"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a new account id")
	}

	acct, _ := f.accounts.GetByID(context.Background(), id)
	if acct.Email != "lperez@escuela.test" || acct.Role != model.RoleStudent || !acct.Active() {
		t.Errorf("unexpected account: %+v", acct)
	}
	if acct.PasswordHash == "Cuaderno7" {
		t.Error("password must be stored hashed")
	}

	if _, err := f.login("lperez", "Cuaderno7", "alumno"); err != nil {
		t.Errorf("registered account should log in: %v", err)
	}
	if f.sink.count(model.AuditRegister) != 1 {
		t.Error("registration should be audited")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, registerInput("lperez", "a@escuela.test")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, in := range []RegisterInput{
		registerInput("lperez", "b@escuela.test"),
		registerInput("otro", "A@escuela.test"),
	} {
		if _, err := f.svc.Register(ctx, in); !errors.Is(err, ErrDuplicateAccount) {
			t.Errorf("expected ErrDuplicateAccount for %s/%s, got %v", in.Username, in.Email, err)
		}
	}
	if f.sink.count(model.AuditRegisterFailed) != 2 {
		t.Error("failed registrations should be audited")
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newFixture(t)

	in := registerInput("lperez", "a@escuela.test")
	in.Password = "abcdef"

	_, err := f.svc.Register(context.Background(), in)
	var weak *WeakPasswordError
	if !errors.As(err, &weak) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected WeakPasswordError, got %v", err)
	}
	if len(weak.Suggestions) == 0 {
		t.Error("expected suggestions")
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	f := newFixture(t)

	in := registerInput("lperez", "a@escuela.test")
	in.Role = "admin"
	if _, err := f.svc.Register(context.Background(), in); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestRegisterRateLimitPerIP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, u := range []string{"uno", "dos", "tres"} {
		if _, err := f.svc.Register(ctx, registerInput(u, u+"@escuela.test")); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	_, err := f.svc.Register(ctx, registerInput("cuatro", "cuatro@escuela.test"))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	other := registerInput("cinco", "cinco@escuela.test")
	other.Meta.IP = "10.0.0.10"
	if _, err := f.svc.Register(ctx, other); err != nil {
		t.Errorf("other IPs are not limited: %v", err)
	}

	f.clock.Advance(time.Hour)
	if _, err := f.svc.Register(ctx, registerInput("seis", "seis@escuela.test")); err != nil {
		t.Errorf("limit should reset after the window: %v", err)
	}
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		score    int
	}{
		{"", 0},
		{"abcdef", 1},
		{"abcdef1", 2},
		{"Cuaderno7", 4},
		{"Cuaderno7!", 5},
	}
	for _, tt := range tests {
		score, suggestions := PasswordStrength(tt.password)
		if score != tt.score {
			t.Errorf("PasswordStrength(%q) = %d, want %d", tt.password, score, tt.score)
		}
		if len(suggestions) != 5-score {
			t.Errorf("PasswordStrength(%q): %d suggestions for score %d", tt.password, len(suggestions), score)
		}
	}
}
