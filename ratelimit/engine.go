// Package ratelimit dispatches each admission check through the global
// fixed-window ceiling, then the resolved tier's algorithm (token bucket,
// sliding window, fixed window, or none). Each algorithm owns a disjoint
// client-state map with its own mutex, so a slow algorithm never blocks
// another.
package ratelimit

import (
	"sync/atomic"
	"time"

	"github.com/alfreddev/alfred-gateway/clock"
	"github.com/rs/zerolog"
)

const globalKey = "__global__"

// Decision is the result of an admission check.
type Decision struct {
	Allowed   bool
	Remaining int // -1 means "unlimited"
	ResetMs   int64
	Limit     int // -1 means "unlimited"
	Scope     string // "global" or "tier", set on rejection only
}

// Engine owns the four state maps from spec.md §4.1 (token-bucket,
// sliding, per-tier fixed, global fixed) and the live rateLimitHits
// counter consumed by the analytics engine.
type Engine struct {
	cfg    *Config
	logger zerolog.Logger
	clock  clock.Clock

	tokenBuckets   *tokenBucketMap
	slidingWindows *slidingWindowMap
	fixedWindows   *fixedWindowMap
	globalWindow   *fixedWindowMap

	hits atomic.Int64
}

// NewEngine creates a rate-limiting engine bound to cfg.
func NewEngine(cfg *Config, logger zerolog.Logger) *Engine {
	return NewEngineWithClock(cfg, logger, clock.New())
}

// NewEngineWithClock is NewEngine with an injectable clock, for tests.
func NewEngineWithClock(cfg *Config, logger zerolog.Logger, c clock.Clock) *Engine {
	return &Engine{
		cfg:            cfg,
		logger:         logger.With().Str("component", "ratelimit").Logger(),
		clock:          c,
		tokenBuckets:   newTokenBucketMap(),
		slidingWindows: newSlidingWindowMap(),
		fixedWindows:   newFixedWindowMap(),
		globalWindow:   newFixedWindowMap(),
	}
}

// Hits returns the live count of rejected requests (global or tier),
// consumed by the analytics snapshot's rateLimitHits field.
func (e *Engine) Hits() int64 {
	return e.hits.Load()
}

// Check runs the full admission contract from spec.md §4.1: global
// ceiling first, then the resolved tier's algorithm.
func (e *Engine) Check(ip, tierName string) Decision {
	now := e.clock.Now()

	if gd := e.checkGlobal(now); !gd.Allowed {
		gd.Scope = "global"
		e.hits.Add(1)
		return gd
	}

	tier := e.cfg.Resolve(tierName)
	if tier.Algorithm == None || tier.Algorithm == "" {
		return Decision{Allowed: true, Remaining: -1, ResetMs: 0, Limit: -1}
	}

	key := tierName + "|" + ip
	var d Decision
	switch tier.Algorithm {
	case TokenBucket:
		d = e.tokenBuckets.check(key, tier, now)
	case SlidingWindow:
		d = e.slidingWindows.check(key, tier, now)
	case FixedWindow:
		d = e.fixedWindows.check(key, tier.MaxRequests, tier.WindowMs, now)
	default:
		// Unknown/malformed algorithm: fail open per spec.md §4.1.
		return Decision{Allowed: true, Remaining: -1, ResetMs: 0, Limit: -1}
	}

	if !d.Allowed {
		d.Scope = "tier"
		e.hits.Add(1)
		e.logger.Debug().Str("ip", ip).Str("tier", tierName).Msg("rate limit exceeded")
	}
	return d
}

func (e *Engine) checkGlobal(now time.Time) Decision {
	gl := e.cfg.GlobalLimit
	if gl.MaxRequests <= 0 {
		return Decision{Allowed: true, Remaining: -1, ResetMs: 0, Limit: -1}
	}
	return e.globalWindow.check(globalKey, gl.MaxRequests, gl.WindowMs, now)
}

// IP filtering lives in a sibling type (IPRules) rather than on Engine — the global ceiling and per-tier algorithms are orthogonal to
// allow/block lists, which the pipeline applies as a separate stage.
