package api

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/agenda/internal/api/handlers"
	"github.com/Togather-Foundation/agenda/internal/api/middleware"
	"github.com/Togather-Foundation/agenda/internal/api/render"
	"github.com/Togather-Foundation/agenda/internal/auth"
	"github.com/Togather-Foundation/agenda/internal/config"
	"github.com/Togather-Foundation/agenda/internal/domain/events"
	"github.com/Togather-Foundation/agenda/internal/domain/users"
	"github.com/Togather-Foundation/agenda/internal/metrics"
	"github.com/Togather-Foundation/agenda/internal/session"
	"github.com/Togather-Foundation/agenda/internal/storage"
	"github.com/Togather-Foundation/agenda/web"
)

// Dependencies are the values NewRouter wires together. The store is owned
// by the caller.
type Dependencies struct {
	Config config.Config
	Store  storage.Repository
	Logger zerolog.Logger
	Build  BuildInfo
}

// NewRouter builds the application handler: services over the store, the
// page routes and the middleware chain.
func NewRouter(deps Dependencies) (http.Handler, error) {
	cfg := deps.Config
	logger := deps.Logger

	keys, err := auth.DeriveKeys([]byte(cfg.Session.Secret))
	if err != nil {
		return nil, fmt.Errorf("derive keys: %w", err)
	}

	sessions := session.NewManager(deps.Store.Sessions(), session.Options{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
		HashKey:    keys.SessionHash,
		BlockKey:   keys.SessionBlock,
	}, logger)
	usersService := users.NewService(deps.Store.Users(), cfg.Auth.BcryptCost, logger)
	eventsService := events.NewService(deps.Store.Events(), logger)

	renderer, err := render.New(web.Templates(), sessions, usersService, logger)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	authHandler := handlers.NewAuthHandler(usersService, sessions, renderer)
	eventsHandler := handlers.NewEventsHandler(eventsService, sessions, renderer)
	health := handlers.NewHealthChecker(deps.Store, deps.Build.Version, deps.Build.GitCommit)
	limiter := middleware.NewRateLimiter(cfg.RateLimit)

	protected := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireLogin(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz)
	mux.Handle("GET /version", VersionHandler(deps.Build))
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", web.StaticHandler()))

	mux.HandleFunc("GET /{$}", authHandler.Index)
	mux.HandleFunc("GET /register", authHandler.RegisterForm)
	mux.Handle("POST /register", limiter.Limit("register")(http.HandlerFunc(authHandler.Register)))
	mux.HandleFunc("GET /login", authHandler.LoginForm)
	mux.Handle("POST /login", limiter.Limit("login")(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("GET /logout", authHandler.Logout)

	mux.Handle("GET /dashboard", protected(eventsHandler.Dashboard))
	mux.Handle("GET /event/new", protected(eventsHandler.New))
	mux.Handle("POST /event/new", protected(eventsHandler.Create))
	mux.Handle("GET /event/{id}/edit", protected(eventsHandler.Edit))
	mux.Handle("POST /event/{id}/edit", protected(eventsHandler.Update))
	mux.Handle("POST /event/{id}/delete", protected(eventsHandler.Delete))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		renderer.Error(w, r, http.StatusNotFound, nil)
	})

	var handler http.Handler = mux
	handler = middleware.LoadIdentity(sessions)(handler)
	if cfg.Session.CSRFEnabled {
		csrfFailure := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			renderer.Error(w, r, http.StatusForbidden, fmt.Errorf("csrf: %w", middleware.CSRFFailureReason(r)))
		})
		handler = middleware.CSRFProtection(keys.CSRF, cfg.Session.Secure, csrfFailure)(handler)
	}
	handler = middleware.RequestSize(middleware.DefaultMaxBodySize)(handler)
	handler = middleware.SecurityHeaders(cfg.Session.Secure)(handler)
	if cfg.Metrics.Enabled {
		handler = metrics.HTTPMiddleware(handler)
	}
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)

	return handler, nil
}
