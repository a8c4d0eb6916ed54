package config_test

import (
	"os"
	"testing"

	"github.com/alfreddev/alfred-gateway/config"
)

func TestLoadConfigFromEnv(t *testing.T) {
	os.Setenv("ENV", "test")
	os.Setenv("GATEWAY_ADDR", ":9090")
	os.Setenv("GATEWAY_ADMIN_TOKEN", "secret-token")
	defer func() {
		os.Unsetenv("ENV")
		os.Unsetenv("GATEWAY_ADDR")
		os.Unsetenv("GATEWAY_ADMIN_TOKEN")
	}()

	cfg := config.Load()
	if cfg.Env != "test" {
		t.Fatalf("expected ENV=test, got %s", cfg.Env)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("expected GATEWAY_ADDR=:9090, got %s", cfg.Addr)
	}
	if cfg.AdminToken != "secret-token" {
		t.Fatalf("expected admin token to be loaded, got %s", cfg.AdminToken)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	os.Unsetenv("GATEWAY_DEVICE_SWEEP_SEC")
	os.Unsetenv("GATEWAY_DEVICE_MAX_PER_IP")

	cfg := config.Load()
	if cfg.DeviceSweepInterval.Seconds() != 3600 {
		t.Fatalf("expected default device sweep interval of 3600s, got %v", cfg.DeviceSweepInterval)
	}
	if cfg.DeviceMaxPerIP != 30 {
		t.Fatalf("expected default device cap of 30, got %d", cfg.DeviceMaxPerIP)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development env by default, got %s", cfg.Env)
	}
}
