package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Togather-Foundation/agenda/internal/api/middleware"
)

const dbCheckTimeout = 2 * time.Second

// HealthCheck represents the readiness status of the server
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Pinger is the store's connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker serves liveness and readiness probes.
type HealthChecker struct {
	store     Pinger
	version   string
	gitCommit string
}

func NewHealthChecker(store Pinger, version, gitCommit string) *HealthChecker {
	return &HealthChecker{store: store, version: version, gitCommit: gitCommit}
}

// Healthz reports that the process is serving requests.
func (h *HealthChecker) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz reports whether the store is reachable. It answers 503 while the
// server is shutting down or the database check fails.
func (h *HealthChecker) Readyz(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	default:
	}

	checks := map[string]CheckResult{
		"database": h.checkDatabase(r.Context()),
	}

	status := "healthy"
	code := http.StatusOK
	for name, check := range checks {
		if check.Status == "fail" {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			middleware.LoggerFromContext(r.Context()).Warn().
				Str("check", name).
				Str("message", check.Message).
				Msg("readiness check failed")
		}
	}

	writeJSON(w, code, HealthCheck{
		Status:    status,
		Version:   h.version,
		GitCommit: h.gitCommit,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if h.store == nil {
		return CheckResult{Status: "fail", Message: "Database not initialized"}
	}

	start := time.Now()
	dbCtx, cancel := context.WithTimeout(ctx, dbCheckTimeout)
	defer cancel()

	err := h.store.Ping(dbCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Database ping failed"
		if errors.Is(err, context.DeadlineExceeded) {
			message = "Database ping timed out after 2 seconds"
		}
		return CheckResult{Status: "fail", Message: message, LatencyMs: latency}
	}
	return CheckResult{Status: "pass", Message: "Database reachable", LatencyMs: latency}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
