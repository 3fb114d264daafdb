package session

import (
	"context"
	"time"
)

// Store persists session records. Implementations must make Rename atomic:
// once it returns, Get on the old id reports ErrNotFound.
type Store interface {
	// Save creates or overwrites the record under rec.ID.
	Save(ctx context.Context, rec *Record) error
	// Get returns a copy of the record or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// Touch advances LastActivity. Missing ids return ErrNotFound.
	Touch(ctx context.Context, id string, at time.Time) error
	// Delete removes the record. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	// SetCSRF replaces the CSRF token fields of an existing record. Missing
	// ids return ErrNotFound and are never recreated.
	SetCSRF(ctx context.Context, id, token string, issuedAt time.Time) error
	// Rename moves the record from oldID to newID and stamps RotatedAt.
	Rename(ctx context.Context, oldID, newID string, at time.Time) error
	// DeleteByAccount removes every session of an account and returns how many were removed.
	DeleteByAccount(ctx context.Context, accountID int64) (int, error)
}
