// Package ratelimit provides fixed-window counters shared by the login
// lockout, the registration limit and the per-IP request limiter.
//
// Counting is read-then-increment across requests, so concurrent callers may
// be slightly over-admitted at the threshold.
package ratelimit

import (
	"context"
	"time"
)

// Counter counts hits per key inside a window that starts at the first hit.
type Counter interface {
	// Hit increments key and returns the new count and the time until the window resets.
	Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
	// Peek returns the current count and time until reset without incrementing.
	Peek(ctx context.Context, key string) (int, time.Duration, error)
	// Reset clears the key.
	Reset(ctx context.Context, key string) error
}
