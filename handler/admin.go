// Package handler implements the management surface from spec.md §4.6:
// analytics reads, credential mutation, paginated logs and device lookup,
// plus the public device-registration endpoint. Every management endpoint
// bypasses the rate limiter and is gated by a constant-time X-Admin-Token
// comparison instead; device registration is not token-gated.
package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/alfreddev/alfred-gateway/pipelineerr"
)

// RequireAdminToken wraps next so that it only runs when the request
// carries the configured admin token. An empty configured token denies
// every request rather than silently disabling the check.
func RequireAdminToken(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token == "" || !constantTimeEqual(r.Header.Get("X-Admin-Token"), token) {
			pipelineerr.Write(w, pipelineerr.New(http.StatusUnauthorized, "Invalid or missing admin token"))
			return
		}
		next(w, r)
	}
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
