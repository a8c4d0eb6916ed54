package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfreddev/alfred-gateway/analytics"
	"github.com/alfreddev/alfred-gateway/auth"
	"github.com/alfreddev/alfred-gateway/config"
	"github.com/alfreddev/alfred-gateway/logger"
	"github.com/alfreddev/alfred-gateway/metrics"
	"github.com/alfreddev/alfred-gateway/ratelimit"
	"github.com/alfreddev/alfred-gateway/router"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("alfred gateway starting")

	var fileSink *logger.FileSink
	if cfg.LogFilePath != "" {
		sink, err := logger.NewFileSink(cfg.LogFilePath, cfg.ServiceName, cfg.LogFileMaxLines)
		if err != nil {
			log.Warn().Err(err).Msg("file log sink init failed — continuing without JSONL logging")
		} else {
			fileSink = sink
			log.Info().Str("dir", cfg.LogFilePath).Msg("JSONL request logging enabled")
		}
	}

	rateConfig, err := ratelimit.LoadConfig(cfg.RateConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load rate-limit config")
	}
	rateEngine := ratelimit.NewEngine(rateConfig, log)

	ipRules := ratelimit.NewIPRules(cfg.IPFilterMode, cfg.IPFilterAllowlist, cfg.IPFilterBlocklist)

	credentials := auth.NewCredentialStore()

	devices, err := auth.NewDeviceRegistry(cfg.DeviceStorePath, cfg.DevicePersistDebounce, cfg.DeviceSweepInterval, cfg.DeviceMaxRegAttemptsPM, cfg.DeviceMaxPerIP, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load device registry")
	}
	devices.Start()

	authenticator := auth.NewAuthenticator(credentials, devices)

	analyticsEngine := analytics.NewEngine(analytics.NewBuffer(), rateEngine.Hits)

	stopDeviceGauge := reportActiveDevices(devices, 10*time.Second)

	r := router.New(router.Deps{
		Config:        cfg,
		Logger:        log,
		Authenticator: authenticator,
		Credentials:   credentials,
		Devices:       devices,
		IPRules:       ipRules,
		RateLimits:    rateConfig,
		RateEngine:    rateEngine,
		Analytics:     analyticsEngine,
		FileSink:      fileSink,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", r)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams hold the connection open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	close(stopDeviceGauge)
	devices.Stop()
	if fileSink != nil {
		_ = fileSink.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("gateway stopped gracefully")
	}
}

// reportActiveDevices periodically mirrors the device registry's live
// count into the gateway_active_devices gauge. Returns a channel the
// caller closes to stop the ticker.
func reportActiveDevices(devices *auth.DeviceRegistry, interval time.Duration) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				metrics.ActiveDevices.Set(float64(devices.ActiveCount()))
			}
		}
	}()
	return stop
}
