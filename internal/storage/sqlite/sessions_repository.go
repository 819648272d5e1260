package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/Togather-Foundation/agenda/internal/session"
)

type SessionRepository struct {
	db DBTX
}

func (r *SessionRepository) CreateSession(ctx context.Context, rec session.Record) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		rec.TokenHash, rec.UserID, rec.CreatedAt.UTC(), rec.ExpiresAt.UTC())
	metrics.RecordQuery("insert_session", start, err)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, tokenHash string) (*session.Record, error) {
	start := time.Now()
	var rec session.Record
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, created_at, expires_at FROM sessions WHERE token_hash = ?`, tokenHash).
		Scan(&rec.TokenHash, &rec.UserID, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordQuery("select_session", start, nil)
		return nil, session.ErrNotFound
	}
	metrics.RecordQuery("select_session", start, err)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &rec, nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	start := time.Now()
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash)
	metrics.RecordQuery("delete_session", start, err)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	metrics.RecordQuery("delete_expired_sessions", start, err)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}
