package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when no session has the given hash.
var ErrNotFound = errors.New("session not found")

// Record is the server-held side of a session. Only the SHA-256 hash of the
// token is stored; the token itself lives in the client's cookie.
type Record struct {
	TokenHash string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Store persists session records.
type Store interface {
	CreateSession(ctx context.Context, rec Record) error
	GetSession(ctx context.Context, tokenHash string) (*Record, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	// DeleteExpiredSessions removes rows with expires_at <= now and reports
	// how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
