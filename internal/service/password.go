package service

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordScore is the lowest strength score accepted at registration.
const MinPasswordScore = 2

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost  int
	dummy []byte
}

// NewPasswordHasher creates a hasher with the given bcrypt cost. It also
// prepares the hash compared against when an account does not exist, so
// both paths pay for one bcrypt comparison.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("escuela-dummy-password"), cost)
	if err != nil {
		return nil, err
	}
	return &PasswordHasher{cost: cost, dummy: dummy}, nil
}

// Hash hashes a password with the configured cost.
func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	return string(hash), err
}

// Verify compares a plaintext password against a bcrypt hash.
func (h *PasswordHasher) Verify(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// VerifyDummy burns one comparison against a hash no password matches.
func (h *PasswordHasher) VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// PasswordStrength scores a password from 0 to 5 and lists what is missing.
func PasswordStrength(password string) (int, []string) {
	checks := []struct {
		ok         bool
		suggestion string
	}{
		{len(password) >= 8, "Use al menos 8 caracteres"},
		{upperRe.MatchString(password), "Incluya letras mayúsculas"},
		{lowerRe.MatchString(password), "Incluya letras minúsculas"},
		{digitRe.MatchString(password), "Incluya números"},
		{specialRe.MatchString(password), "Incluya caracteres especiales"},
	}

	score := 0
	var suggestions []string
	for _, c := range checks {
		if c.ok {
			score++
		} else {
			suggestions = append(suggestions, c.suggestion)
		}
	}
	return score, suggestions
}
