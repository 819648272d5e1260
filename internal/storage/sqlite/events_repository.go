package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/agenda/internal/domain/events"
	"github.com/Togather-Foundation/agenda/internal/metrics"
)

// Event times are bound as UTC time.Time values; the driver renders them in
// a fixed-width layout so ORDER BY on the text column is chronological.
type EventRepository struct {
	db DBTX
}

const eventColumns = `id, user_id, name, event_time, created_at, updated_at`

func (r *EventRepository) CreateEvent(ctx context.Context, ownerID int64, in events.Input) (*events.Event, error) {
	start := time.Now()
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (user_id, name, event_time, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		ownerID, in.Name, in.EventTime.UTC(), now, now)
	if err != nil {
		metrics.RecordQuery("insert_event", start, err)
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	metrics.RecordQuery("insert_event", start, err)
	if err != nil {
		return nil, fmt.Errorf("insert event id: %w", err)
	}

	return &events.Event{
		ID:        id,
		OwnerID:   ownerID,
		Name:      in.Name,
		EventTime: in.EventTime.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *EventRepository) ListEventsByOwner(ctx context.Context, ownerID int64) (list []events.Event, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("select_events_by_owner", start, err) }()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE user_id = ? ORDER BY event_time ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	list = []events.Event{}
	for rows.Next() {
		var ev events.Event
		if err := rows.Scan(&ev.ID, &ev.OwnerID, &ev.Name, &ev.EventTime, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		list = append(list, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return list, nil
}

func (r *EventRepository) GetEvent(ctx context.Context, id int64) (*events.Event, error) {
	start := time.Now()
	var ev events.Event
	err := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id).
		Scan(&ev.ID, &ev.OwnerID, &ev.Name, &ev.EventTime, &ev.CreatedAt, &ev.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordQuery("select_event", start, nil)
		return nil, events.ErrNotFound
	}
	metrics.RecordQuery("select_event", start, err)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &ev, nil
}

func (r *EventRepository) UpdateEvent(ctx context.Context, id int64, in events.Input) (*events.Event, error) {
	start := time.Now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET name = ?, event_time = ?, updated_at = ? WHERE id = ?`,
		in.Name, in.EventTime.UTC(), time.Now().UTC(), id)
	if err == nil {
		err = requireRow(res)
	}
	if errors.Is(err, events.ErrNotFound) {
		metrics.RecordQuery("update_event", start, nil)
		return nil, events.ErrNotFound
	}
	metrics.RecordQuery("update_event", start, err)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return r.GetEvent(ctx, id)
}

func (r *EventRepository) DeleteEvent(ctx context.Context, id int64) error {
	start := time.Now()
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err == nil {
		err = requireRow(res)
	}
	if errors.Is(err, events.ErrNotFound) {
		metrics.RecordQuery("delete_event", start, nil)
		return events.ErrNotFound
	}
	metrics.RecordQuery("delete_event", start, err)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return events.ErrNotFound
	}
	return nil
}
