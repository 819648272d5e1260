package handlers

import (
	"errors"
	"net/http"

	"github.com/Togather-Foundation/agenda/internal/api/middleware"
	"github.com/Togather-Foundation/agenda/internal/api/render"
	"github.com/Togather-Foundation/agenda/internal/domain/users"
	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/Togather-Foundation/agenda/internal/session"
	"github.com/Togather-Foundation/agenda/internal/validation"
)

type AuthHandler struct {
	Users    *users.Service
	Sessions *session.Manager
	Render   *render.Renderer
}

func NewAuthHandler(service *users.Service, sessions *session.Manager, rn *render.Renderer) *AuthHandler {
	return &AuthHandler{Users: service, Sessions: sessions, Render: rn}
}

type credentialsForm struct {
	Username string
}

// Index sends signed-in users to their dashboard and everyone else to the
// login page.
func (h *AuthHandler) Index(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserID(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.Render.HTML(w, r, http.StatusOK, "register", credentialsForm{})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.Render) {
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	form := credentialsForm{Username: users.NormalizeUsername(username)}

	_, err := h.Users.Register(r.Context(), username, password)
	switch {
	case err == nil:
		metrics.AuthAttempts.WithLabelValues("register", "success").Inc()
		redirectWithFlash(w, r, h.Sessions, "/login", FlashRegistered)
	case errors.Is(err, users.ErrInvalidInput):
		metrics.AuthAttempts.WithLabelValues("register", "invalid").Inc()
		h.Render.HTML(w, r, http.StatusOK, "register", form, validation.Message(err))
	case errors.Is(err, users.ErrUsernameTaken):
		metrics.AuthAttempts.WithLabelValues("register", "taken").Inc()
		h.Render.HTML(w, r, http.StatusOK, "register", form, MsgUsernameTaken)
	default:
		metrics.AuthAttempts.WithLabelValues("register", "error").Inc()
		h.Render.Error(w, r, http.StatusInternalServerError, err)
	}
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.Render.HTML(w, r, http.StatusOK, "login", credentialsForm{})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.Render) {
		return
	}
	username := r.PostFormValue("username")
	form := credentialsForm{Username: users.NormalizeUsername(username)}

	user, err := h.Users.Verify(r.Context(), username, r.PostFormValue("password"))
	if errors.Is(err, users.ErrInvalidCredentials) {
		metrics.AuthAttempts.WithLabelValues("login", "invalid").Inc()
		h.Render.HTML(w, r, http.StatusOK, "login", form, MsgBadLogin)
		return
	}
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "error").Inc()
		h.Render.Error(w, r, http.StatusInternalServerError, err)
		return
	}

	if err := h.Sessions.Login(r.Context(), w, r, user.ID); err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "error").Inc()
		h.Render.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	middleware.LoggerFromContext(r.Context()).Info().Int64("user_id", user.ID).Msg("user signed in")
	redirectWithFlash(w, r, h.Sessions, "/dashboard", FlashSignedIn)
}

// Logout ends the session, if any, and always lands on the login page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(r.Context(), w, r); err != nil {
		metrics.AuthAttempts.WithLabelValues("logout", "error").Inc()
		h.Render.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	metrics.AuthAttempts.WithLabelValues("logout", "success").Inc()
	redirectWithFlash(w, r, h.Sessions, "/login", FlashSignedOut)
}
