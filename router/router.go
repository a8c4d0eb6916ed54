// Package router assembles the gateway's HTTP surface: the admission
// pipeline in front of the upstream application, the self-service device
// registration endpoint, and the admin-gated management surface that
// bypasses the limiter per spec.md §2.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/alfreddev/alfred-gateway/analytics"
	"github.com/alfreddev/alfred-gateway/auth"
	"github.com/alfreddev/alfred-gateway/config"
	"github.com/alfreddev/alfred-gateway/handler"
	"github.com/alfreddev/alfred-gateway/logger"
	gwmw "github.com/alfreddev/alfred-gateway/middleware"
	"github.com/alfreddev/alfred-gateway/ratelimit"
)

// Deps collects every collaborator the router wires into middleware and
// management handlers.
type Deps struct {
	Config        *config.Config
	Logger        zerolog.Logger
	Authenticator *auth.Authenticator
	Credentials   *auth.CredentialStore
	Devices       *auth.DeviceRegistry
	IPRules       *ratelimit.IPRules
	RateLimits    *ratelimit.Config
	RateEngine    *ratelimit.Engine
	Analytics     *analytics.Engine
	FileSink      *logger.FileSink

	// Upstream is the application the gateway fronts. Its routing,
	// body parsing, and response rendering are external collaborators
	// per spec.md §1 — the gateway only admits or rejects.
	Upstream http.Handler
}

// New builds the full chi.Router: health checks, device registration, the
// admission pipeline in front of Upstream, and the admin management
// surface.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(gwmw.CORSMiddleware(corsOrigins(d.Config)))
	r.Use(gwmw.SecurityHeadersMiddleware)
	r.Use(gwmw.RequestIDMiddleware)
	r.Use(gwmw.StandardHeadersMiddleware)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", healthz(d.Config.ServiceName))

	deviceHandler := handler.NewDeviceHandler(d.Devices)
	r.Post("/devices/register", deviceHandler.Register)

	mountAdmin(r, d)
	mountPipeline(r, d)

	return r
}

func healthz(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"` + service + `"}`))
	}
}

// mountPipeline wires spec.md §2's ordered stages — log hook,
// authentication, IP filter, rate limit — in front of the upstream
// application. The log hook installs first so it fires on response
// completion regardless of which later stage short-circuits.
func mountPipeline(r chi.Router, d Deps) {
	logHook := gwmw.NewLogHookMiddleware(d.Analytics, d.FileSink, d.Config.ServiceName, d.Logger)
	authMW := gwmw.NewAuthMiddleware(d.Authenticator, d.Logger)
	ipFilter := gwmw.NewIPFilterMiddleware(d.IPRules, d.Logger)
	rateLimiter := gwmw.NewRateLimitMiddleware(d.RateEngine, d.Logger)

	upstream := d.Upstream
	if upstream == nil {
		upstream = http.NotFoundHandler()
	}

	pipeline := logHook.Handler(
		authMW.Handler(
			ipFilter.Handler(
				rateLimiter.Handler(upstream),
			),
		),
	)

	r.Handle("/*", pipeline)
}

// mountAdmin wires the management surface from spec.md §4.6. Every route
// bypasses the admission pipeline and is gated by RequireAdminToken
// instead, so observability and credential management survive
// saturation of the rate limiter.
func mountAdmin(r chi.Router, d Deps) {
	analyticsHandler := handler.NewAnalyticsHandler(d.Analytics)
	configHandler := handler.NewConfigHandler(d.RateLimits, d.IPRules, d.Credentials, d.Analytics)
	credentialHandler := handler.NewCredentialHandler(d.Credentials)
	logsHandler := handler.NewLogsHandler(d.Analytics)
	deviceHandler := handler.NewDeviceHandler(d.Devices)

	token := d.Config.AdminToken

	r.Route("/admin", func(r chi.Router) {
		r.Get("/analytics/snapshot", handler.RequireAdminToken(token, analyticsHandler.Snapshot))
		r.Get("/analytics/stream", handler.RequireAdminToken(token, analyticsHandler.Stream))
		r.Get("/config", handler.RequireAdminToken(token, configHandler.Get))
		r.Get("/credentials", handler.RequireAdminToken(token, credentialHandler.List))
		r.Post("/credentials", handler.RequireAdminToken(token, credentialHandler.Create))
		r.Delete("/credentials/{id}", handler.RequireAdminToken(token, credentialHandler.Revoke))
		r.Get("/logs", handler.RequireAdminToken(token, logsHandler.List))
		r.Get("/devices/{browserId}", handler.RequireAdminToken(token, deviceHandler.Get))
	})
}

func corsOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
