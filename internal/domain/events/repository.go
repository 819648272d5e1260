package events

import "context"

// Repository abstracts event persistence. It does not know who is asking:
// ownership checks happen in Authorize, never here.
//
// GetEvent, UpdateEvent and DeleteEvent return ErrNotFound when no row has
// the given id. ListEventsByOwner orders by event time ascending, then id.
type Repository interface {
	CreateEvent(ctx context.Context, ownerID int64, in Input) (*Event, error)
	ListEventsByOwner(ctx context.Context, ownerID int64) ([]Event, error)
	GetEvent(ctx context.Context, id int64) (*Event, error)
	UpdateEvent(ctx context.Context, id int64, in Input) (*Event, error)
	DeleteEvent(ctx context.Context, id int64) error
}
