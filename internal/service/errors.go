package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors returned at the service boundary. Data-layer failures never cross
// it; they are logged and reported as ErrSystem.
var (
	ErrValidation         = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("too many attempts")
	ErrSystem             = errors.New("system error")
	ErrDuplicateAccount   = errors.New("username or email already registered")
	ErrAccountNotFound    = errors.New("account not found")
)

// RateLimitError reports how long the caller has to wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// WeakPasswordError lists what a rejected password is missing.
type WeakPasswordError struct {
	Suggestions []string
}

func (e *WeakPasswordError) Error() string {
	return "password too weak: " + strings.Join(e.Suggestions, "; ")
}

func (e *WeakPasswordError) Is(target error) bool {
	return target == ErrValidation
}
