package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all gateway configuration values.
type Config struct {
	// Server
	Addr            string
	Env             string
	ServiceName     string
	GracefulTimeout time.Duration
	LogLevel        string

	// Management surface
	AdminToken string

	// Rate limiting
	RateConfigPath string

	// Device registry
	DeviceStorePath        string
	DeviceSweepInterval    time.Duration
	DevicePersistDebounce  time.Duration
	DeviceMaxPerIP         int
	DeviceMaxRegAttemptsPM int

	// Optional JSONL file logging (spec.md §6 log-file collaborator)
	LogFilePath     string
	LogFileMaxLines int

	// IP allow/block list
	IPFilterMode      string
	IPFilterAllowlist []string
	IPFilterBlocklist []string

	// CORS
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("GATEWAY_GRACEFUL_TIMEOUT_SEC", 15)
	sweepSec := getEnvInt("GATEWAY_DEVICE_SWEEP_SEC", 3600)
	debounceMs := getEnvInt("GATEWAY_DEVICE_DEBOUNCE_MS", 2000)

	cfg := &Config{
		Addr:                   getEnv("GATEWAY_ADDR", ":8080"),
		Env:                    getEnv("ENV", "development"),
		ServiceName:            getEnv("GATEWAY_SERVICE_NAME", "alfred-gateway"),
		GracefulTimeout:        time.Duration(gracefulSec) * time.Second,
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		AdminToken:             getEnv("GATEWAY_ADMIN_TOKEN", ""),
		RateConfigPath:         getEnv("GATEWAY_RATE_CONFIG_PATH", "./config/ratelimit.json"),
		DeviceStorePath:        getEnv("GATEWAY_DEVICE_STORE_PATH", "./data/devices.json"),
		DeviceSweepInterval:    time.Duration(sweepSec) * time.Second,
		DevicePersistDebounce:  time.Duration(debounceMs) * time.Millisecond,
		DeviceMaxPerIP:         getEnvInt("GATEWAY_DEVICE_MAX_PER_IP", 30),
		DeviceMaxRegAttemptsPM: getEnvInt("GATEWAY_DEVICE_MAX_REG_ATTEMPTS", 10),
		LogFilePath:            getEnv("GATEWAY_LOG_FILE_PATH", ""),
		LogFileMaxLines:        getEnvInt("GATEWAY_LOG_FILE_MAX_LINES", 10000),
		IPFilterMode:           getEnv("GATEWAY_IP_FILTER_MODE", "blocklist"),
		IPFilterAllowlist:      getEnvList("GATEWAY_IP_ALLOWLIST"),
		IPFilterBlocklist:      getEnvList("GATEWAY_IP_BLOCKLIST"),
		CORSAllowedOrigins:     getEnvList("GATEWAY_CORS_ORIGINS"),
	}
	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvList splits a comma-separated env var into a trimmed slice. An
// unset or empty var yields an empty (not nil) slice.
func getEnvList(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return []string{}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
