package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alfreddev/alfred-gateway/clock"
)

const (
	deviceLifetime     = 7 * 24 * time.Hour
	registrationWindow = 60 * time.Second

	// defaultMaxRegAttemptsPerIP and defaultMaxActiveDevicesPerIP are the
	// spec.md §4.5 caps, used when the registry isn't given overrides.
	defaultMaxRegAttemptsPerIP = 10
	defaultMaxActiveDevicesIP  = 30
)

// DeviceEntry is a browser instance paired with a server-issued shared
// secret for TOTP, per spec.md §3.
type DeviceEntry struct {
	BrowserID    string    `json:"browserId"`
	SharedSecret string    `json:"sharedSecret"`
	IP           string    `json:"ip"`
	UserAgent    string    `json:"userAgent"`
	RegisteredAt time.Time `json:"registeredAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastSeen     time.Time `json:"lastSeen"`
	LastIP       string    `json:"lastIp"`
	Active       bool      `json:"active"`
}

type deviceFile struct {
	Devices []DeviceEntry `json:"devices"`
}

// RegisterResult carries either an error status or the accepted entry.
type RegisterResult struct {
	Entry      DeviceEntry
	StatusCode int // 0 on success; 429 or 403 on rejection
	Message    string
}

// DeviceRegistry owns the in-memory device map, its debounced on-disk
// persistence, and the per-IP registration caps from spec.md §4.5.
type DeviceRegistry struct {
	mu      sync.Mutex
	devices map[string]*DeviceEntry

	attemptsMu sync.Mutex
	attempts   map[string][]time.Time // ip -> recent registration attempt timestamps

	path            string
	debounceDelay   time.Duration
	sweepInterval   time.Duration
	logger          zerolog.Logger
	clock           clock.Clock
	maxRegAttempts  int
	maxActivePerIP  int

	persistMu     sync.Mutex
	persistTimer  *time.Timer
	persistDirty  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDeviceRegistry loads any existing store at path (creating the parent
// directory if missing) and returns a registry ready for Start(), bound to
// the real system clock. maxRegAttempts and maxActivePerIP are the spec.md
// §4.5 caps; pass <= 0 for either to use the documented defaults (10/60s,
// 30 active devices).
func NewDeviceRegistry(path string, debounceDelay, sweepInterval time.Duration, maxRegAttempts, maxActivePerIP int, logger zerolog.Logger) (*DeviceRegistry, error) {
	return NewDeviceRegistryWithClock(path, debounceDelay, sweepInterval, maxRegAttempts, maxActivePerIP, logger, clock.New())
}

// NewDeviceRegistryWithClock is NewDeviceRegistry with an injectable clock,
// for tests that need to drive the registration-velocity window, the
// active-device cap, or the 7-day expiry deterministically.
func NewDeviceRegistryWithClock(path string, debounceDelay, sweepInterval time.Duration, maxRegAttempts, maxActivePerIP int, logger zerolog.Logger, c clock.Clock) (*DeviceRegistry, error) {
	if maxRegAttempts <= 0 {
		maxRegAttempts = defaultMaxRegAttemptsPerIP
	}
	if maxActivePerIP <= 0 {
		maxActivePerIP = defaultMaxActiveDevicesIP
	}
	r := &DeviceRegistry{
		devices:        make(map[string]*DeviceEntry),
		attempts:       make(map[string][]time.Time),
		path:           path,
		debounceDelay:  debounceDelay,
		sweepInterval:  sweepInterval,
		logger:         logger.With().Str("component", "device_registry").Logger(),
		clock:          c,
		maxRegAttempts: maxRegAttempts,
		maxActivePerIP: maxActivePerIP,
		done:           make(chan struct{}),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *DeviceRegistry) load() error {
	if r.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var f deviceFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	for i := range f.Devices {
		d := f.Devices[i]
		r.devices[d.BrowserID] = &d
	}
	r.logger.Info().Int("count", len(r.devices)).Msg("loaded device store")
	return nil
}

// Start begins the hourly expiry sweep. Persistence itself is debounced
// per mutation, not on a fixed interval.
func (r *DeviceRegistry) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.sweepLoop(ctx)
}

// Stop cancels the sweep loop and flushes any pending persistence.
func (r *DeviceRegistry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
	r.flush()
}

func (r *DeviceRegistry) sweepLoop(ctx context.Context) {
	defer close(r.done)
	interval := r.sweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *DeviceRegistry) sweep() {
	now := r.clock.Now()
	r.mu.Lock()
	removedOrExpired := 0
	for id, d := range r.devices {
		if d.Active && now.After(d.ExpiresAt) {
			d.Active = false
			removedOrExpired++
		}
		_ = id
	}
	r.mu.Unlock()
	if removedOrExpired > 0 {
		r.logger.Debug().Int("count", removedOrExpired).Msg("swept expired devices")
		r.schedulePersist()
	}
}

// Register implements spec.md §4.5's registration contract: velocity cap,
// active-device cap, then idempotent refresh or new entry.
func (r *DeviceRegistry) Register(browserID, ip, userAgent string) RegisterResult {
	now := r.clock.Now()

	if r.recordAttemptAndCheckVelocity(ip, now) {
		return RegisterResult{StatusCode: 429, Message: "Too many registration attempts"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	activeForIP := 0
	for _, d := range r.devices {
		if d.IP == ip && d.Active && now.Before(d.ExpiresAt) {
			activeForIP++
		}
	}

	if activeForIP >= r.maxActivePerIP {
		return RegisterResult{StatusCode: 403, Message: "Too many active devices for this IP"}
	}

	if existing, ok := r.devices[browserID]; ok && existing.Active && now.Before(existing.ExpiresAt) {
		existing.ExpiresAt = now.Add(deviceLifetime)
		existing.LastSeen = now
		existing.LastIP = ip
		r.schedulePersistLocked()
		return RegisterResult{Entry: *existing}
	}

	secret, err := newSharedSecret()
	if err != nil {
		return RegisterResult{StatusCode: 500, Message: "Failed to generate device secret"}
	}
	entry := DeviceEntry{
		BrowserID:    browserID,
		SharedSecret: secret,
		IP:           ip,
		UserAgent:    userAgent,
		RegisteredAt: now,
		ExpiresAt:    now.Add(deviceLifetime),
		LastSeen:     now,
		LastIP:       ip,
		Active:       true,
	}
	r.devices[browserID] = &entry
	r.schedulePersistLocked()
	return RegisterResult{Entry: entry}
}

// recordAttemptAndCheckVelocity records the attempt before checking the
// cap — a registering client's own attempt counts toward its next check,
// per spec.md §4.5's documented note.
func (r *DeviceRegistry) recordAttemptAndCheckVelocity(ip string, now time.Time) bool {
	r.attemptsMu.Lock()
	defer r.attemptsMu.Unlock()

	windowStart := now.Add(-registrationWindow)
	attempts := r.attempts[ip]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	fresh = append(fresh, now)
	r.attempts[ip] = fresh

	return len(fresh) > r.maxRegAttempts
}

// Get resolves browserId to an active, unexpired entry. Expired entries
// are eagerly deactivated on lookup and trigger persistence.
func (r *DeviceRegistry) Get(browserID string) (DeviceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[browserID]
	if !ok {
		return DeviceEntry{}, false
	}
	if !d.Active || r.clock.Now().After(d.ExpiresAt) {
		if d.Active {
			d.Active = false
			r.schedulePersistLocked()
		}
		return DeviceEntry{}, false
	}
	return *d, true
}

// Touch updates lastSeen/lastIp after a successful TOTP validation.
func (r *DeviceRegistry) Touch(browserID, ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[browserID]; ok {
		d.LastSeen = r.clock.Now()
		d.LastIP = ip
		r.schedulePersistLocked()
	}
}

func (r *DeviceRegistry) schedulePersist() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedulePersistLocked()
}

// schedulePersistLocked must be called with r.mu held. It owns a single
// reset-then-fire-once timer handle per spec.md §9's debounce pattern.
func (r *DeviceRegistry) schedulePersistLocked() {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	r.persistDirty = true
	if r.persistTimer != nil {
		r.persistTimer.Stop()
	}
	r.persistTimer = time.AfterFunc(r.debounceDelay, r.flush)
}

// flush writes the in-memory map to disk. File writes never hold the
// data lock for the duration of I/O: the snapshot is copied out first.
func (r *DeviceRegistry) flush() {
	r.persistMu.Lock()
	if !r.persistDirty {
		r.persistMu.Unlock()
		return
	}
	r.persistDirty = false
	r.persistMu.Unlock()

	if r.path == "" {
		return
	}

	r.mu.Lock()
	snapshot := make([]DeviceEntry, 0, len(r.devices))
	for _, d := range r.devices {
		snapshot = append(snapshot, *d)
	}
	r.mu.Unlock()

	data, err := json.MarshalIndent(deviceFile{Devices: snapshot}, "", "  ")
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to marshal device store")
		return
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		r.logger.Error().Err(err).Msg("failed to write device store")
		return
	}
	if err := os.Rename(tmp, r.path); err != nil {
		r.logger.Error().Err(err).Msg("failed to commit device store")
	}
}

// ActiveCount returns the number of active, unexpired devices — mirrored
// into the gateway_active_devices metrics gauge.
func (r *DeviceRegistry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	n := 0
	for _, d := range r.devices {
		if d.Active && now.Before(d.ExpiresAt) {
			n++
		}
	}
	return n
}

func newSharedSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewBrowserID returns a fresh canonical-form UUIDv4, for handlers that
// issue a browserId on first visit rather than requiring the client to
// generate one.
func NewBrowserID() string {
	return uuid.New().String()
}

// ValidBrowserID reports whether s is a version-4 UUID in canonical
// lowercase 8-4-4-4-12 form.
func ValidBrowserID(s string) bool {
	u, err := uuid.Parse(s)
	return err == nil && u.Version() == 4 && u.String() == s
}
