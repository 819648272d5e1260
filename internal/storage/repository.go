package storage

import (
	"context"

	"github.com/Togather-Foundation/agenda/internal/domain/events"
	"github.com/Togather-Foundation/agenda/internal/domain/users"
	"github.com/Togather-Foundation/agenda/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Repository groups data access by domain.
type Repository interface {
	Users() users.Repository
	Events() events.Repository
	Sessions() session.Store

	Ping(ctx context.Context) error
	Close() error

	// StatsCollector exposes connection pool statistics.
	StatsCollector() prometheus.Collector
}
