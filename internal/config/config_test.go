package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		SessionBackend:     SessionBackendMemory,
		SessionCookieName:  "escuela_session",
		SessionIdleTimeout: time.Hour,
		SessionRotateEvery: 5 * time.Minute,
		CSRFTokenTTL:       30 * time.Minute,
		StoreTimeout:       3 * time.Second,
		LoginMaxFailures:   5,
		LoginLockout:       5 * time.Minute,
		RegisterWindow:     time.Hour,
		AllowedOrigins:     []string{"http://localhost:3000"},
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_RejectsWildcardOrigin(t *testing.T) {
	cfg := validConfig()
	cfg.AllowedOrigins = []string{"http://localhost", "*"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should reject a wildcard origin")
	}
	if !strings.Contains(err.Error(), "wildcard") {
		t.Errorf("error = %q, want mention of wildcard", err)
	}
}

func TestValidate_RejectsEmptyOrigins(t *testing.T) {
	cfg := validConfig()
	cfg.AllowedOrigins = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should reject an empty allow-list")
	}
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.SessionBackend = "memcached"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should reject unknown session backend")
	}
}

func TestValidate_RejectsNonPositiveTimeouts(t *testing.T) {
	cfg := validConfig()
	cfg.SessionIdleTimeout = 0
	cfg.StoreTimeout = -time.Second

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should reject non-positive durations")
	}
	for _, name := range []string{"SESSION_IDLE_TIMEOUT", "STORE_TIMEOUT"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR_GO", "90s")
	t.Setenv("TEST_DUR_SECONDS", "120")
	t.Setenv("TEST_DUR_BAD", "soon")

	if got := getEnvDuration("TEST_DUR_GO", time.Minute); got != 90*time.Second {
		t.Errorf("go duration = %s, want 90s", got)
	}
	if got := getEnvDuration("TEST_DUR_SECONDS", time.Minute); got != 2*time.Minute {
		t.Errorf("seconds = %s, want 2m", got)
	}
	if got := getEnvDuration("TEST_DUR_BAD", time.Minute); got != time.Minute {
		t.Errorf("bad value = %s, want fallback 1m", got)
	}
	if got := getEnvDuration("TEST_DUR_UNSET", time.Minute); got != time.Minute {
		t.Errorf("unset = %s, want fallback 1m", got)
	}
}

func TestParseOrigins(t *testing.T) {
	got := parseOrigins(" http://a.test , ,http://b.test")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("parseOrigins = %v", got)
	}
	if parseOrigins("") != nil {
		t.Error("parseOrigins(\"\") should be nil")
	}
}
