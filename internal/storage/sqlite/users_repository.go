package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/agenda/internal/domain/users"
	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/mattn/go-sqlite3"
)

type UserRepository struct {
	db DBTX
}

func (r *UserRepository) CreateUser(ctx context.Context, username, passwordHash string) (*users.User, error) {
	const op = "insert_user"
	start := time.Now()

	createdAt := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			metrics.RecordQuery(op, start, nil)
			return nil, fmt.Errorf("insert user: %w", users.ErrUsernameTaken)
		}
		metrics.RecordQuery(op, start, err)
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	metrics.RecordQuery(op, start, err)
	if err != nil {
		return nil, fmt.Errorf("insert user id: %w", err)
	}

	return &users.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}, nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	return scanUser("select_user_by_username", time.Now(), row)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*users.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser("select_user_by_id", time.Now(), row)
}

func scanUser(op string, start time.Time, row *sql.Row) (*users.User, error) {
	var u users.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordQuery(op, start, nil)
		return nil, users.ErrUserNotFound
	}
	metrics.RecordQuery(op, start, err)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
