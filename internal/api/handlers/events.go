package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Togather-Foundation/agenda/internal/api/middleware"
	"github.com/Togather-Foundation/agenda/internal/api/render"
	"github.com/Togather-Foundation/agenda/internal/domain/events"
	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/Togather-Foundation/agenda/internal/validation"
)

// EventsHandler serves the signed-in user's agenda. Every route sits behind
// middleware.RequireLogin.
type EventsHandler struct {
	Service *events.Service
	Flash   Flasher
	Render  *render.Renderer
}

func NewEventsHandler(service *events.Service, flash Flasher, rn *render.Renderer) *EventsHandler {
	return &EventsHandler{Service: service, Flash: flash, Render: rn}
}

type dashboardView struct {
	Events []events.Event
}

// eventForm holds the form values as typed so a failed submit re-renders
// them unchanged. ID is zero for a new event.
type eventForm struct {
	ID        int64
	Name      string
	EventTime string
}

func (h *EventsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	list, err := h.Service.ListForOwner(r.Context(), userID)
	if err != nil {
		h.Render.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	h.Render.HTML(w, r, http.StatusOK, "dashboard", dashboardView{Events: list})
}

func (h *EventsHandler) New(w http.ResponseWriter, r *http.Request) {
	h.Render.HTML(w, r, http.StatusOK, "event_form", eventForm{})
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.Render) {
		return
	}
	userID, _ := middleware.UserID(r.Context())
	form := eventForm{Name: r.PostFormValue("name"), EventTime: r.PostFormValue("event_time")}

	_, err := h.Service.Create(r.Context(), userID, form.Name, form.EventTime)
	if errors.Is(err, events.ErrInvalidInput) {
		metrics.EventMutations.WithLabelValues("create", "invalid").Inc()
		h.Render.HTML(w, r, http.StatusOK, "event_form", form, validation.Message(err))
		return
	}
	if err != nil {
		metrics.EventMutations.WithLabelValues("create", "error").Inc()
		h.Render.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	metrics.EventMutations.WithLabelValues("create", "success").Inc()
	redirectWithFlash(w, r, h.Flash, "/dashboard", FlashCreated)
}

func (h *EventsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.loadOwned(w, r, "")
	if !ok {
		return
	}
	h.Render.HTML(w, r, http.StatusOK, "event_form", eventForm{
		ID:        ev.ID,
		Name:      ev.Name,
		EventTime: events.FormatInputTime(ev.EventTime),
	})
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.loadOwned(w, r, "update")
	if !ok || !parseForm(w, r, h.Render) {
		return
	}
	form := eventForm{ID: ev.ID, Name: r.PostFormValue("name"), EventTime: r.PostFormValue("event_time")}

	_, err := h.Service.Update(r.Context(), ev.ID, form.Name, form.EventTime)
	switch {
	case err == nil:
		metrics.EventMutations.WithLabelValues("update", "success").Inc()
		redirectWithFlash(w, r, h.Flash, "/dashboard", FlashUpdated)
	case errors.Is(err, events.ErrInvalidInput):
		metrics.EventMutations.WithLabelValues("update", "invalid").Inc()
		h.Render.HTML(w, r, http.StatusOK, "event_form", form, validation.Message(err))
	case errors.Is(err, events.ErrNotFound):
		metrics.EventMutations.WithLabelValues("update", "not_found").Inc()
		h.Render.Error(w, r, http.StatusNotFound, nil)
	default:
		metrics.EventMutations.WithLabelValues("update", "error").Inc()
		h.Render.Error(w, r, http.StatusInternalServerError, err)
	}
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.loadOwned(w, r, "delete")
	if !ok {
		return
	}

	err := h.Service.Delete(r.Context(), ev.ID)
	switch {
	case err == nil:
		metrics.EventMutations.WithLabelValues("delete", "success").Inc()
		redirectWithFlash(w, r, h.Flash, "/dashboard", FlashDeleted)
	case errors.Is(err, events.ErrNotFound):
		metrics.EventMutations.WithLabelValues("delete", "not_found").Inc()
		h.Render.Error(w, r, http.StatusNotFound, nil)
	default:
		metrics.EventMutations.WithLabelValues("delete", "error").Inc()
		h.Render.Error(w, r, http.StatusInternalServerError, err)
	}
}

// loadOwned resolves {id} to an event the caller owns. A malformed or unknown
// id renders 404, someone else's event 403. action labels the metric for
// mutations; it is empty for reads.
func (h *EventsHandler) loadOwned(w http.ResponseWriter, r *http.Request, action string) (*events.Event, bool) {
	record := func(outcome string) {
		if action != "" {
			metrics.EventMutations.WithLabelValues(action, outcome).Inc()
		}
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		record("not_found")
		h.Render.Error(w, r, http.StatusNotFound, nil)
		return nil, false
	}

	ev, err := h.Service.Get(r.Context(), id)
	if errors.Is(err, events.ErrNotFound) {
		record("not_found")
		h.Render.Error(w, r, http.StatusNotFound, nil)
		return nil, false
	}
	if err != nil {
		record("error")
		h.Render.Error(w, r, http.StatusInternalServerError, err)
		return nil, false
	}

	userID, _ := middleware.UserID(r.Context())
	if err := events.Authorize(ev, userID); err != nil {
		record("forbidden")
		middleware.LoggerFromContext(r.Context()).Warn().
			Int64("event_id", ev.ID).
			Msg("rejected access to another user's event")
		h.Render.Error(w, r, http.StatusForbidden, nil)
		return nil, false
	}
	return ev, true
}
