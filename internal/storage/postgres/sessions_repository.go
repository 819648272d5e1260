package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/Togather-Foundation/agenda/internal/session"
	"github.com/jackc/pgx/v5"
)

type SessionRepository struct {
	db Querier
}

func (r *SessionRepository) CreateSession(ctx context.Context, rec session.Record) error {
	start := time.Now()
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (token_hash, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		rec.TokenHash, rec.UserID, rec.CreatedAt, rec.ExpiresAt)
	metrics.RecordQuery("insert_session", start, err)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, tokenHash string) (*session.Record, error) {
	start := time.Now()
	var rec session.Record
	err := r.db.QueryRow(ctx,
		`SELECT token_hash, user_id, created_at, expires_at FROM sessions WHERE token_hash = $1`, tokenHash).
		Scan(&rec.TokenHash, &rec.UserID, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
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
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	metrics.RecordQuery("delete_session", start, err)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	metrics.RecordQuery("delete_expired_sessions", start, err)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
