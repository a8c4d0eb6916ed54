package ratelimit

import (
	"math"
	"sync"
	"time"
)

// tokenBucketState is the per-client token bucket: tokens (float64) plus
// lastRefill as a monotonic instant, per spec.md §3.
type tokenBucketState struct {
	tokens     float64
	lastRefill time.Time
}

// tokenBucketMap owns one mutex-guarded map of client state, keyed by
// (tier, ip) per the Open Question resolution in DESIGN.md.
type tokenBucketMap struct {
	mu    sync.Mutex
	state map[string]*tokenBucketState
}

func newTokenBucketMap() *tokenBucketMap {
	return &tokenBucketMap{state: make(map[string]*tokenBucketState)}
}

// check implements spec.md §4.1 "Token bucket". If now is before a
// client's lastRefill, elapsed is clamped to 0, so a backward clock jump
// of any size adds no tokens.
func (m *tokenBucketMap) check(key string, tier Tier, now time.Time) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.state[key]
	if !ok {
		st = &tokenBucketState{tokens: float64(tier.MaxRequests), lastRefill: now}
		m.state[key] = st
	}

	elapsed := now.Sub(st.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	st.tokens += elapsed * tier.RefillRate
	if st.tokens > float64(tier.MaxRequests) {
		st.tokens = float64(tier.MaxRequests)
	}
	st.lastRefill = now

	if st.tokens >= 1 {
		st.tokens--
		remaining := int(math.Floor(st.tokens))
		var resetMs int64
		if st.tokens <= 0 {
			resetMs = ceilMs((1 / tier.RefillRate) * 1000)
		}
		return Decision{Allowed: true, Remaining: remaining, ResetMs: resetMs, Limit: tier.MaxRequests}
	}

	resetMs := ceilMs(((1 - st.tokens) / tier.RefillRate) * 1000)
	return Decision{Allowed: false, Remaining: 0, ResetMs: resetMs, Limit: tier.MaxRequests}
}

func ceilMs(ms float64) int64 {
	return int64(math.Ceil(ms))
}
