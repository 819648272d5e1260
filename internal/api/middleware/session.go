package middleware

import (
	"context"
	"net/http"
)

const userIDKey contextKey = "user_id"

// IdentityResolver resolves the signed-in user from the request's session
// cookie. ok is false for anonymous requests.
type IdentityResolver interface {
	CurrentIdentity(ctx context.Context, r *http.Request) (userID int64, ok bool, err error)
}

// LoadIdentity attaches the signed-in user id, if any, to the request context
// and to the request logger. Lookup failures are logged and the request
// continues as anonymous.
func LoadIdentity(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok, err := resolver.CurrentIdentity(r.Context(), r)
			if err != nil {
				LoggerFromContext(r.Context()).Error().Err(err).Msg("session lookup failed")
			}
			if ok {
				ctx := WithUserID(r.Context(), userID)
				logger := LoggerFromContext(ctx).With().Int64("user_id", userID).Logger()
				r = r.WithContext(logger.WithContext(ctx))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLogin redirects anonymous requests to /login. It relies on
// LoadIdentity running earlier in the chain.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserID(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserID stores the signed-in user id in ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the signed-in user id set by LoadIdentity.
func UserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}
