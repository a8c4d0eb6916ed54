package auth_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alfreddev/alfred-gateway/auth"
	"github.com/alfreddev/alfred-gateway/clock"
	"github.com/rs/zerolog"
)

func newTestRegistry(t *testing.T) *auth.DeviceRegistry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.json")
	r, err := auth.NewDeviceRegistry(path, 50*time.Millisecond, time.Hour, 0, 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDeviceRegistry: %v", err)
	}
	return r
}

// newMockClockRegistry returns a registry bound to a Mock clock the test
// can advance, along with the clock itself.
func newMockClockRegistry(t *testing.T, maxRegAttempts, maxActivePerIP int) (*auth.DeviceRegistry, *clock.Mock) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.json")
	mock := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	r, err := auth.NewDeviceRegistryWithClock(path, 50*time.Millisecond, time.Hour, maxRegAttempts, maxActivePerIP, zerolog.Nop(), mock)
	if err != nil {
		t.Fatalf("NewDeviceRegistryWithClock: %v", err)
	}
	return r, mock
}

func TestDeviceRegistrationIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	browserID := "550e8400-e29b-41d4-a716-446655440000"

	first := r.Register(browserID, "1.2.3.4", "test-agent")
	if first.StatusCode != 0 {
		t.Fatalf("expected first registration to succeed, got status %d: %s", first.StatusCode, first.Message)
	}

	second := r.Register(browserID, "1.2.3.4", "test-agent")
	if second.StatusCode != 0 {
		t.Fatalf("expected re-registration to succeed, got status %d", second.StatusCode)
	}
	if second.Entry.SharedSecret != first.Entry.SharedSecret {
		t.Fatalf("expected re-registration to return the same sharedSecret")
	}
	if !second.Entry.ExpiresAt.After(first.Entry.ExpiresAt.Add(-time.Second)) {
		t.Fatalf("expected re-registration to refresh expiresAt")
	}
}

func TestDeviceRegistrationVelocityCap(t *testing.T) {
	r := newTestRegistry(t)
	ip := "9.9.9.9"

	var last auth.RegisterResult
	for i := 0; i < 11; i++ {
		last = r.Register(uuidFor(i), ip, "agent")
	}
	if last.StatusCode != 429 {
		t.Fatalf("expected the 11th registration attempt from one IP in 60s to be rejected 429, got %d", last.StatusCode)
	}
}

// TestDeviceActiveCapPerIP drives the mock clock forward by more than the
// 60s registration-velocity window between each batch of registrations, so
// the velocity cap never trips and the active-device cap (spec.md §4.5 step
// 2) is the only thing that can reject the 31st distinct device from one IP.
func TestDeviceActiveCapPerIP(t *testing.T) {
	r, mock := newMockClockRegistry(t, 5, 30)
	ip := "5.5.5.5"

	var last auth.RegisterResult
	for i := 0; i < 31; i++ {
		last = r.Register(uuidFor(i), ip, "agent")
		if last.StatusCode == 429 {
			t.Fatalf("velocity cap tripped at attempt %d despite clock advancing past the window each time", i)
		}
		mock.Advance(61 * time.Second)
	}
	if last.StatusCode != 403 {
		t.Fatalf("expected the 31st active device from one IP to be rejected 403, got %d: %s", last.StatusCode, last.Message)
	}
}

// TestDeviceExpiryOnLookup confirms a device becomes unreachable via Get
// once its 7-day lifetime elapses, without needing a real 7-day wait.
func TestDeviceExpiryOnLookup(t *testing.T) {
	r, mock := newMockClockRegistry(t, 0, 0)
	browserID := "550e8400-e29b-41d4-a716-446655440001"

	reg := r.Register(browserID, "4.4.4.4", "agent")
	if reg.StatusCode != 0 {
		t.Fatalf("registration failed: %d %s", reg.StatusCode, reg.Message)
	}

	mock.Advance(7*24*time.Hour + time.Minute)

	if _, ok := r.Get(browserID); ok {
		t.Fatalf("expected an expired device to be rejected by Get")
	}
}

func TestDeviceLookupRejectsUnknown(t *testing.T) {
	r := newTestRegistry(t)
	if _, ok := r.Get("not-a-real-browser-id"); ok {
		t.Fatalf("expected lookup of unknown browserId to fail")
	}
}

func uuidFor(_ int) string {
	return auth.NewBrowserID() // each call yields a fresh, valid UUIDv4
}
