package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/agenda/internal/domain/users"
	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	db Querier
}

func (r *UserRepository) CreateUser(ctx context.Context, username, passwordHash string) (*users.User, error) {
	start := time.Now()
	var u users.User
	err := r.db.QueryRow(ctx, `
INSERT INTO users (username, password_hash)
VALUES ($1, $2)
RETURNING id, username, password_hash, created_at`,
		username, passwordHash,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			metrics.RecordQuery("insert_user", start, nil)
			return nil, fmt.Errorf("insert user: %w", users.ErrUsernameTaken)
		}
		metrics.RecordQuery("insert_user", start, err)
		return nil, fmt.Errorf("insert user: %w", err)
	}
	metrics.RecordQuery("insert_user", start, nil)
	return &u, nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*users.User, error) {
	return r.getUser(ctx, "select_user_by_username",
		`SELECT id, username, password_hash, created_at FROM users WHERE username = $1`, username)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*users.User, error) {
	return r.getUser(ctx, "select_user_by_id",
		`SELECT id, username, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepository) getUser(ctx context.Context, op, query string, arg any) (*users.User, error) {
	start := time.Now()
	var u users.User
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.RecordQuery(op, start, nil)
		return nil, users.ErrUserNotFound
	}
	metrics.RecordQuery(op, start, err)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
