package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Togather-Foundation/agenda/internal/config"
	"github.com/Togather-Foundation/agenda/internal/metrics"
)

const (
	// loginRefill is the token refill interval: the burst of
	// LoginPer15Minutes attempts comes back over fifteen minutes.
	loginRefill = 3 * time.Minute

	limiterIdleTTL = 15 * time.Minute
	pruneInterval  = 5 * time.Minute
)

// RateLimiter throttles credential posts (login and register) per client IP.
// Both actions draw from the same bucket so registration cannot be used to
// bypass the login limit.
type RateLimiter struct {
	burst   int
	trusted []*net.IPNet
	now     func() time.Time

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastPrune time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter from cfg. LoginPer15Minutes <= 0 disables
// it. Malformed proxy CIDRs are ignored.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	l := &RateLimiter{
		burst:    cfg.LoginPer15Minutes,
		now:      time.Now,
		limiters: make(map[string]*limiterEntry),
	}
	for _, cidrStr := range cfg.TrustedProxyCIDRs {
		if _, cidr, err := net.ParseCIDR(strings.TrimSpace(cidrStr)); err == nil {
			l.trusted = append(l.trusted, cidr)
		}
	}
	return l
}

// Limit wraps a credential handler. Only POST is counted; rendering the form
// is free. action labels the rate_limited outcome in auth_attempts_total.
func (l *RateLimiter) Limit(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil || l.burst <= 0 || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			if !l.allow(clientKey(r, l.trusted)) {
				metrics.AuthAttempts.WithLabelValues(action, "rate_limited").Inc()
				LoggerFromContext(r.Context()).Warn().
					Str("action", action).
					Msg("credential attempt rate limited")
				w.Header().Set("Retry-After", strconv.Itoa(int(loginRefill/time.Second)))
				http.Error(w, "Too many attempts, try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (l *RateLimiter) allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) >= pruneInterval {
		l.prune(now)
	}

	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(loginRefill), l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// prune drops limiters idle longer than limiterIdleTTL; by then their bucket
// has refilled completely. Caller holds l.mu.
func (l *RateLimiter) prune(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
	l.lastPrune = now
}

// clientKey extracts the client IP. X-Forwarded-For and X-Real-IP are only
// honoured when the connection comes from a trusted proxy.
func clientKey(r *http.Request, trusted []*net.IPNet) string {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if isTrustedProxy(remoteIP, trusted) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	return remoteIP
}

func isTrustedProxy(ip string, trusted []*net.IPNet) bool {
	if len(trusted) == 0 {
		return false
	}
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}
	for _, cidr := range trusted {
		if cidr.Contains(parsedIP) {
			return true
		}
	}
	return false
}
