package logger

import (
	"os"

	"github.com/alfreddev/alfred-gateway/config"
	"github.com/rs/zerolog"
)

// New returns a configured zerolog.Logger. Console writer in development,
// structured JSON in production.
func New(cfg *config.Config) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if cfg.IsDevelopment() {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if cfg.IsDevelopment() {
		out := zerolog.ConsoleWriter{Out: os.Stderr}
		return zerolog.New(out).With().Timestamp().Str("service", cfg.ServiceName).Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Str("service", cfg.ServiceName).Logger()
}
