package middleware

import (
	"net/http"

	"github.com/alfreddev/alfred-gateway/pipelineerr"
	"github.com/alfreddev/alfred-gateway/ratelimit"
	"github.com/rs/zerolog"
)

// IPFilterMiddleware enforces the allow/block list after authentication
// and before rate limiting, per spec.md §2's pipeline order.
type IPFilterMiddleware struct {
	rules  *ratelimit.IPRules
	logger zerolog.Logger
}

// NewIPFilterMiddleware wires an IPRules set into the pipeline. rules may
// be nil, in which case every request passes through.
func NewIPFilterMiddleware(rules *ratelimit.IPRules, logger zerolog.Logger) *IPFilterMiddleware {
	return &IPFilterMiddleware{rules: rules, logger: logger}
}

// Handler returns the HTTP middleware handler.
func (m *IPFilterMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		if allowed, reason := m.rules.Allowed(ip); !allowed {
			m.logger.Debug().Str("ip", ip).Str("reason", reason).Msg("IP filter rejected request")
			pipelineerr.Write(w, pipelineerr.New(http.StatusForbidden, reason))
			return
		}

		next.ServeHTTP(w, r)
	})
}
