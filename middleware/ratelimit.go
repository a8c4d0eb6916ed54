package middleware

import (
	"net/http"
	"strconv"

	"github.com/alfreddev/alfred-gateway/auth"
	"github.com/alfreddev/alfred-gateway/metrics"
	"github.com/alfreddev/alfred-gateway/pipelineerr"
	"github.com/alfreddev/alfred-gateway/ratelimit"
	"github.com/rs/zerolog"
)

// RateLimitMiddleware is the final pipeline stage: it checks admission via
// ratelimit.Engine and sets the standard X-RateLimit-* headers per
// spec.md §6.
type RateLimitMiddleware struct {
	engine *ratelimit.Engine
	logger zerolog.Logger
}

// NewRateLimitMiddleware wires a rate-limiting engine into the pipeline.
func NewRateLimitMiddleware(engine *ratelimit.Engine, logger zerolog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{engine: engine, logger: logger}
}

// Handler returns the HTTP middleware handler.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		id, _ := auth.FromContext(r.Context())

		d := m.engine.Check(ip, id.Tier)

		if d.Limit > 0 {
			remaining := d.Remaining
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(ceilSeconds(d.ResetMs), 10))
		}

		if !d.Allowed {
			m.logger.Debug().Str("ip", ip).Str("tier", id.Tier).Msg("rate limit exceeded")
			metrics.RateLimitRejectionsTotal.WithLabelValues(d.Scope).Inc()
			pipelineerr.Write(w, pipelineerr.Error{
				Status: http.StatusTooManyRequests,
				Body: map[string]any{
					"error":      "Rate limit exceeded",
					"retryAfter": ceilSeconds(d.ResetMs),
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func ceilSeconds(ms int64) int64 {
	if ms <= 0 {
		return 0
	}
	return (ms + 999) / 1000
}
