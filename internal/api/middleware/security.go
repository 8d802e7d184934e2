package middleware

import (
	"net/http"

	"github.com/meteocache/meteocache/internal/api/models"
)

// apiSecurityHeaders are set on every response. The API only serves JSON, so
// the policies deny framing, embedding and browser features outright.
var apiSecurityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders adds the API's fixed security headers before the handler
// runs, so handlers may still override them.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range apiSecurityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests a proxy forwarded over plain HTTP with a 403
// forbidden envelope. Requests without X-Forwarded-Proto reached the server
// directly and are allowed.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" && proto != "https" {
				models.NewError(models.MessageForbidden, []models.FieldError{
					{Field: "X-Forwarded-Proto", Message: "https required", Code: "tls_required"},
				}).Write(w, GetRequestID(r.Context()), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
