package middleware

import (
	"html/template"
	"net/http"

	"github.com/gorilla/csrf"
)

// CSRFProtection guards every unsafe method with gorilla/csrf's
// double-submit token. Requests arriving without TLS while secure is false
// are marked plaintext so the Referer check does not demand https.
// failure renders the 403 response; nil writes a plain one.
func CSRFProtection(authKey []byte, secure bool, failure http.Handler) func(http.Handler) http.Handler {
	if failure == nil {
		failure = http.HandlerFunc(csrfErrorHandler)
	}
	protect := csrf.Protect(authKey,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(failure),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS == nil && !secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Forbidden - CSRF token invalid", http.StatusForbidden)
}

// CSRFFailureReason returns why gorilla/csrf rejected r.
func CSRFFailureReason(r *http.Request) error {
	return csrf.FailureReason(r)
}

// CSRFField renders the hidden form input carrying the token. It is empty
// when CSRFProtection is not installed.
func CSRFField(r *http.Request) template.HTML {
	return csrf.TemplateField(r)
}
