package middleware

import (
	"net/http"

	"github.com/alfreddev/alfred-gateway/auth"
	"github.com/alfreddev/alfred-gateway/pipelineerr"
	"github.com/rs/zerolog"
)

// AuthMiddleware resolves an Identity for each request per spec.md §4.2
// and attaches it to the request context; a failure is terminal.
type AuthMiddleware struct {
	authenticator *auth.Authenticator
	logger        zerolog.Logger
}

// NewAuthMiddleware wires an Authenticator into the pipeline.
func NewAuthMiddleware(a *auth.Authenticator, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{authenticator: a, logger: logger}
}

// Handler returns the HTTP middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		id, authErr := m.authenticator.Authenticate(r, ip)
		if authErr != nil {
			m.logger.Debug().Str("ip", ip).Str("reason", authErr.Message).Msg("authentication rejected")
			pipelineerr.Write(w, pipelineerr.New(authErr.Status, authErr.Message))
			return
		}

		ctx := auth.WithIdentity(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
