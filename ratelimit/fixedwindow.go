package ratelimit

import (
	"sync"
	"time"
)

// fixedWindowState is {count, windowStart} per spec.md §3.
type fixedWindowState struct {
	count       int
	windowStart time.Time
}

type fixedWindowMap struct {
	mu    sync.Mutex
	state map[string]*fixedWindowState
}

func newFixedWindowMap() *fixedWindowMap {
	return &fixedWindowMap{state: make(map[string]*fixedWindowState)}
}

// check implements spec.md §4.1 "Fixed window" for a (tier, ip)-keyed
// entry. The known boundary weakness (up to 2× burst across an edge) is
// accepted, matching spec.md's documented tradeoff.
func (m *fixedWindowMap) check(key string, maxRequests int, windowMs int64, now time.Time) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.state[key]
	if !ok || now.Sub(st.windowStart).Milliseconds() >= windowMs {
		st = &fixedWindowState{count: 0, windowStart: now}
		m.state[key] = st
	}

	resetMs := windowMs - now.Sub(st.windowStart).Milliseconds()

	if st.count < maxRequests {
		st.count++
		return Decision{Allowed: true, Remaining: maxRequests - st.count, ResetMs: resetMs, Limit: maxRequests}
	}
	return Decision{Allowed: false, Remaining: 0, ResetMs: resetMs, Limit: maxRequests}
}
