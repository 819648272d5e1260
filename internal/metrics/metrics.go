package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all agenda metrics
const namespace = "agenda"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// AuthAttempts counts register/login/logout outcomes.
// action: register|login|logout, outcome: success|invalid|taken|rate_limited|error
var AuthAttempts = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication attempts by action and outcome",
	},
	[]string{"action", "outcome"},
)

// EventMutations counts event writes.
// action: create|update|delete, outcome: success|invalid|forbidden|not_found|error
var EventMutations = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_mutations_total",
		Help:      "Total number of event create/update/delete requests by outcome",
	},
	[]string{"action", "outcome"},
)

// SessionsPurged counts expired sessions removed by the cleanup command.
var SessionsPurged = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_purged_total",
		Help:      "Total number of expired sessions deleted",
	},
)

// Init registers runtime collectors and sets version information
func Init(version, commit, buildDate string) {
	// Register default Go metrics (memory, goroutines, GC, etc.)
	_ = Registry.Register(collectors.NewGoCollector())

	// Register process metrics (CPU, memory, file descriptors)
	_ = Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
