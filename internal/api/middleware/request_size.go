package middleware

import (
	"net/http"
)

// DefaultMaxBodySize bounds form posts.
const DefaultMaxBodySize int64 = 1 << 20 // 1MB

// RequestSize wraps the body in http.MaxBytesReader. Reading past maxBytes
// fails, and ParseForm surfaces that as an error the handler maps to 413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
