package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/agenda/internal/domain/events"
	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/jackc/pgx/v5"
)

type EventRepository struct {
	db Querier
}

const eventColumns = `id, user_id, name, event_time, created_at, updated_at`

func scanEvent(row pgx.Row) (*events.Event, error) {
	var ev events.Event
	if err := row.Scan(&ev.ID, &ev.OwnerID, &ev.Name, &ev.EventTime, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	ev.EventTime = ev.EventTime.UTC()
	return &ev, nil
}

func (r *EventRepository) CreateEvent(ctx context.Context, ownerID int64, in events.Input) (*events.Event, error) {
	start := time.Now()
	ev, err := scanEvent(r.db.QueryRow(ctx, `
INSERT INTO events (user_id, name, event_time)
VALUES ($1, $2, $3)
RETURNING `+eventColumns,
		ownerID, in.Name, in.EventTime.UTC()))
	metrics.RecordQuery("insert_event", start, err)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

func (r *EventRepository) ListEventsByOwner(ctx context.Context, ownerID int64) (list []events.Event, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("select_events_by_owner", start, err) }()

	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE user_id = $1 ORDER BY event_time ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	list = []events.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		list = append(list, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return list, nil
}

func (r *EventRepository) GetEvent(ctx context.Context, id int64) (*events.Event, error) {
	start := time.Now()
	ev, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.RecordQuery("select_event", start, nil)
		return nil, events.ErrNotFound
	}
	metrics.RecordQuery("select_event", start, err)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (r *EventRepository) UpdateEvent(ctx context.Context, id int64, in events.Input) (*events.Event, error) {
	start := time.Now()
	ev, err := scanEvent(r.db.QueryRow(ctx, `
UPDATE events SET name = $2, event_time = $3, updated_at = now()
WHERE id = $1
RETURNING `+eventColumns,
		id, in.Name, in.EventTime.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.RecordQuery("update_event", start, nil)
		return nil, events.ErrNotFound
	}
	metrics.RecordQuery("update_event", start, err)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return ev, nil
}

func (r *EventRepository) DeleteEvent(ctx context.Context, id int64) error {
	start := time.Now()
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	metrics.RecordQuery("delete_event", start, err)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}
