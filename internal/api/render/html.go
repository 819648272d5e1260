package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/agenda/internal/api/middleware"
	"github.com/Togather-Foundation/agenda/internal/domain/users"
)

const (
	isoLayout     = "2006-01-02T15:04:05"
	displayLayout = "Mon, 02 Jan 2006 15:04"
)

// Page is the value every template executes against. Data holds the
// page-specific fields.
type Page struct {
	Username  string
	Flashes   []string
	CSRFField template.HTML
	Data      any
}

// ErrorData feeds error.html.
type ErrorData struct {
	Status  int
	Title   string
	Message string
}

// FlashSource pops the flash messages queued for a request.
type FlashSource interface {
	Flashes(w http.ResponseWriter, r *http.Request) []string
}

// UserLookup resolves the signed-in user's display name.
type UserLookup interface {
	Get(ctx context.Context, id int64) (*users.User, error)
}

// Renderer executes the page templates inside the shared layout.
type Renderer struct {
	pages   map[string]*template.Template
	flashes FlashSource
	users   UserLookup
	logger  zerolog.Logger
}

var funcs = template.FuncMap{
	"isoTime":     func(t time.Time) string { return t.Format(isoLayout) },
	"displayTime": func(t time.Time) string { return t.Format(displayLayout) },
}

// New parses layout.html together with every other *.html file in files.
// Pages are addressed by file name without the extension.
func New(files fs.FS, flashes FlashSource, lookup UserLookup, logger zerolog.Logger) (*Renderer, error) {
	names, err := fs.Glob(files, "*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == "layout.html" {
			continue
		}
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(files, "layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name[:len(name)-len(".html")]] = tmpl
	}
	if _, ok := pages["error"]; !ok {
		return nil, errors.New("error.html template is required")
	}

	return &Renderer{
		pages:   pages,
		flashes: flashes,
		users:   lookup,
		logger:  logger.With().Str("component", "render").Logger(),
	}, nil
}

// HTML renders page with status. messages are shown after any pending
// flashes; handlers use them for form errors on re-render.
func (rn *Renderer) HTML(w http.ResponseWriter, r *http.Request, status int, page string, data any, messages ...string) {
	tmpl, ok := rn.pages[page]
	if !ok {
		rn.fail(w, r, fmt.Errorf("unknown page %q", page))
		return
	}

	view := Page{
		Username:  rn.username(r),
		CSRFField: middleware.CSRFField(r),
		Data:      data,
	}
	if rn.flashes != nil {
		view.Flashes = rn.flashes.Flashes(w, r)
	}
	view.Flashes = append(view.Flashes, messages...)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", view); err != nil {
		rn.fail(w, r, fmt.Errorf("execute %s: %w", page, err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// Error renders the error page for status. err, when non-nil, is logged;
// it never reaches the response.
func (rn *Renderer) Error(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err != nil {
		logger := middleware.LoggerFromContext(r.Context())
		event := logger.Warn()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.Err(err).Int("status", status).Msg("request failed")
	}

	rn.HTML(w, r, status, "error", ErrorData{
		Status:  status,
		Title:   http.StatusText(status),
		Message: errorMessage(status),
	})
}

func errorMessage(status int) string {
	switch status {
	case http.StatusNotFound:
		return "The page or event you asked for does not exist."
	case http.StatusForbidden:
		return "You do not have permission to do that."
	case http.StatusRequestEntityTooLarge:
		return "The submitted form is too large."
	default:
		return "Something went wrong on our side. Please try again."
	}
}

func (rn *Renderer) username(r *http.Request) string {
	userID, ok := middleware.UserID(r.Context())
	if !ok || rn.users == nil {
		return ""
	}
	user, err := rn.users.Get(r.Context(), userID)
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Warn().Err(err).Msg("failed to load signed-in user")
		return ""
	}
	return user.Username
}

// fail is the last resort when a template cannot be rendered.
func (rn *Renderer) fail(w http.ResponseWriter, r *http.Request, err error) {
	middleware.LoggerFromContext(r.Context()).Error().Err(err).Msg("template rendering failed")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
