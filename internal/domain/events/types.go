package events

import (
	"errors"
	"time"

	"github.com/Togather-Foundation/agenda/internal/validation"
)

// MaxNameLength matches the width of the events.name column.
const MaxNameLength = 200

var (
	ErrInvalidInput = validation.ErrInvalidInput
	ErrNotFound     = errors.New("event not found")
	ErrForbidden    = errors.New("event belongs to another user")
)

// Event is a named point in time owned by one user. EventTime carries no
// timezone semantics; it is a wall-clock value kept in UTC.
type Event struct {
	ID        int64
	OwnerID   int64
	Name      string
	EventTime time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Input holds validated, normalized event fields ready for storage.
type Input struct {
	Name      string
	EventTime time.Time
}
