package ratelimit

import (
	"encoding/json"
	"fmt"
	"os"
)

// Algorithm identifies which admission algorithm a Tier uses.
type Algorithm string

const (
	TokenBucket   Algorithm = "tokenBucket"
	SlidingWindow Algorithm = "slidingWindow"
	FixedWindow   Algorithm = "fixedWindow"
	None          Algorithm = "none"
)

// Tier is a named rate-limit policy assigned to a credential.
type Tier struct {
	Algorithm   Algorithm `json:"algorithm"`
	MaxRequests int       `json:"maxRequests,omitempty"`
	WindowMs    int64     `json:"windowMs,omitempty"`
	RefillRate  float64   `json:"refillRate,omitempty"`
}

// Valid reports whether the tier carries the fields its algorithm needs.
// A malformed tier is never rejected outright — callers treat an invalid
// tier as unlimited (fail-open), per spec.md §4.1.
func (t Tier) Valid() bool {
	switch t.Algorithm {
	case None, "":
		return true
	case TokenBucket:
		return t.MaxRequests > 0 && t.RefillRate > 0
	case SlidingWindow, FixedWindow:
		return t.MaxRequests > 0 && t.WindowMs > 0
	default:
		return false
	}
}

// GlobalLimit is the process-wide fixed-window ceiling applied before any
// per-tier check.
type GlobalLimit struct {
	MaxRequests int   `json:"maxRequests"`
	WindowMs    int64 `json:"windowMs"`
}

// Config binds named tiers to a default tier and a global ceiling.
type Config struct {
	Tiers       map[string]Tier `json:"tiers"`
	DefaultTier string          `json:"defaultTier"`
	GlobalLimit GlobalLimit     `json:"globalLimit"`
}

// Validate checks the defaultTier ∈ tiers invariant from spec.md §3.
func (c *Config) Validate() error {
	if _, ok := c.Tiers[c.DefaultTier]; !ok {
		return fmt.Errorf("ratelimit: defaultTier %q is not present in tiers", c.DefaultTier)
	}
	return nil
}

// DefaultConfig is the built-in tier set used when no rate-limit config
// file is present.
func DefaultConfig() *Config {
	return &Config{
		Tiers: map[string]Tier{
			"free": {
				Algorithm:   FixedWindow,
				MaxRequests: 60,
				WindowMs:    60_000,
			},
			"pro": {
				Algorithm:   TokenBucket,
				MaxRequests: 120,
				RefillRate:  2,
			},
			"enterprise": {
				Algorithm: None,
			},
		},
		DefaultTier: "free",
		GlobalLimit: GlobalLimit{
			MaxRequests: 1000,
			WindowMs:    60_000,
		},
	}
}

// LoadConfig reads a rate-limit configuration document from path. A
// missing file is not an error — it returns DefaultConfig(), mirroring
// the fail-open posture of the engine itself.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ratelimit: read config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ratelimit: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve looks up a tier by name, falling back to the default tier, and
// finally to an unlimited tier if even the default is absent or malformed
// (fail-open per spec.md §4.1 step 2).
func (c *Config) Resolve(tierName string) Tier {
	if t, ok := c.Tiers[tierName]; ok && t.Valid() {
		return t
	}
	if t, ok := c.Tiers[c.DefaultTier]; ok && t.Valid() {
		return t
	}
	return Tier{Algorithm: None}
}
