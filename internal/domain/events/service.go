package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/agenda/internal/sanitize"
	"github.com/Togather-Foundation/agenda/internal/validation"
	"github.com/rs/zerolog"
)

// Form messages.
const (
	MsgFieldsRequired = "Both name and time are required"
	MsgNameTooLong    = "Name must be at most 200 characters"
)

var formMessages = validation.Messages{
	"Name.notblank": MsgFieldsRequired,
	"Time.notblank": MsgFieldsRequired,
	"Name.max":      MsgNameTooLong,
}

type eventForm struct {
	Name string `validate:"notblank,max=200"`
	Time string `validate:"notblank"`
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Normalize validates raw form values and returns storable input. Markup is
// stripped from the name before the emptiness and length checks.
func Normalize(name, rawTime string) (Input, error) {
	form := eventForm{Name: sanitize.Line(name), Time: rawTime}
	if err := validation.Struct(form, formMessages); err != nil {
		return Input{}, err
	}
	when, err := ParseEventTime(rawTime)
	if err != nil {
		return Input{}, err
	}
	return Input{Name: form.Name, EventTime: when}, nil
}

// Create validates and stores a new event owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID int64, name, rawTime string) (*Event, error) {
	in, err := Normalize(name, rawTime)
	if err != nil {
		return nil, err
	}
	ev, err := s.repo.CreateEvent(ctx, ownerID, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.logger.Debug().Int64("event_id", ev.ID).Int64("owner_id", ownerID).Msg("event created")
	return ev, nil
}

// ListForOwner returns every event of ownerID, earliest first. The result is
// never nil.
func (s *Service) ListForOwner(ctx context.Context, ownerID int64) ([]Event, error) {
	list, err := s.repo.ListEventsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if list == nil {
		list = []Event{}
	}
	return list, nil
}

// Get looks an event up by id regardless of owner.
func (s *Service) Get(ctx context.Context, id int64) (*Event, error) {
	ev, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return ev, nil
}

// Update replaces the name and time of an existing event. The owner never
// changes.
func (s *Service) Update(ctx context.Context, id int64, name, rawTime string) (*Event, error) {
	in, err := Normalize(name, rawTime)
	if err != nil {
		return nil, err
	}
	ev, err := s.repo.UpdateEvent(ctx, id, in)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	s.logger.Debug().Int64("event_id", id).Msg("event updated")
	return ev, nil
}

// Delete removes an event.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}
	s.logger.Debug().Int64("event_id", id).Msg("event deleted")
	return nil
}

// Authorize reports ErrForbidden unless userID owns ev.
func Authorize(ev *Event, userID int64) error {
	if ev == nil || ev.OwnerID != userID {
		return ErrForbidden
	}
	return nil
}
