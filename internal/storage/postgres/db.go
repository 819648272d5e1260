package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/agenda/internal/domain/events"
	"github.com/Togather-Foundation/agenda/internal/domain/users"
	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/Togather-Foundation/agenda/internal/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const uniqueViolation = "23505"

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements storage.Repository with PostgreSQL backend
type Repository struct {
	pool *pgxpool.Pool

	users    *UserRepository
	events   *EventRepository
	sessions *SessionRepository
}

// Open creates a pool for databaseURL and verifies connectivity.
func Open(ctx context.Context, databaseURL string, maxConns int) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewRepository(pool)
}

// NewRepository creates a new PostgreSQL-backed repository
func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	return &Repository{
		pool:     pool,
		users:    &UserRepository{db: pool},
		events:   &EventRepository{db: pool},
		sessions: &SessionRepository{db: pool},
	}, nil
}

func (r *Repository) Users() users.Repository {
	return r.users
}

func (r *Repository) Events() events.Repository {
	return r.events
}

func (r *Repository) Sessions() session.Store {
	return r.sessions
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// StatsCollector reports pool statistics, read on every scrape.
func (r *Repository) StatsCollector() prometheus.Collector {
	return metrics.NewPoolCollector(r.pool)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
