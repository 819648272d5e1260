package handlers

import (
	"errors"
	"net/http"

	"github.com/Togather-Foundation/agenda/internal/api/middleware"
	"github.com/Togather-Foundation/agenda/internal/api/render"
)

// Flash texts shown after a redirect.
const (
	FlashRegistered  = "Registration successful. Please log in."
	FlashSignedIn    = "Signed in successfully"
	FlashSignedOut   = "Signed out"
	FlashCreated     = "Event created"
	FlashUpdated     = "Event updated"
	FlashDeleted     = "Event deleted"
	MsgUsernameTaken = "Username already taken"
	MsgBadLogin      = "Invalid username or password"
)

// Flasher queues messages for the next rendered page.
type Flasher interface {
	AddFlash(w http.ResponseWriter, r *http.Request, messages ...string) error
}

// parseForm reads the posted form. On failure it renders the error page and
// reports false.
func parseForm(w http.ResponseWriter, r *http.Request, rn *render.Renderer) bool {
	err := r.ParseForm()
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		rn.Error(w, r, http.StatusRequestEntityTooLarge, err)
		return false
	}
	rn.Error(w, r, http.StatusBadRequest, err)
	return false
}

// redirectWithFlash queues message and answers 303 to location. A flash that
// cannot be stored is logged; the redirect still happens.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, flasher Flasher, location, message string) {
	if err := flasher.AddFlash(w, r, message); err != nil {
		middleware.LoggerFromContext(r.Context()).Warn().Err(err).Msg("failed to store flash message")
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
