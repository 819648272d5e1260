package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/Togather-Foundation/agenda/internal/domain/events"
	"github.com/Togather-Foundation/agenda/internal/domain/users"
	"github.com/Togather-Foundation/agenda/internal/session"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const busyTimeoutMillis = 5000

// DBTX is the subset of *sql.DB and *sql.Tx the repositories use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository implements storage.Repository on an SQLite database file.
type Repository struct {
	db *sql.DB

	users    *UserRepository
	events   *EventRepository
	sessions *SessionRepository
}

// DSN builds the driver connection string for path with foreign keys
// enforced and a busy timeout so concurrent writers wait instead of failing.
func DSN(path string) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", fmt.Sprint(busyTimeoutMillis))
	return "file:" + path + "?" + params.Encode()
}

// Open connects to the database file at path and verifies the connection.
func Open(ctx context.Context, path string, maxOpen, maxIdle int) (*Repository, error) {
	db, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Repository {
	return &Repository{
		db:       db,
		users:    &UserRepository{db: db},
		events:   &EventRepository{db: db},
		sessions: &SessionRepository{db: db},
	}
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
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// StatsCollector exposes database/sql pool statistics to Prometheus.
func (r *Repository) StatsCollector() prometheus.Collector {
	return collectors.NewDBStatsCollector(r.db, "sqlite")
}
