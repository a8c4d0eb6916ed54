package handler

import (
	"encoding/json"
	"net/http"

	"github.com/alfreddev/alfred-gateway/analytics"
	"github.com/alfreddev/alfred-gateway/auth"
	"github.com/alfreddev/alfred-gateway/ratelimit"
)

// ConfigHandler serves the read-only configuration summary from spec.md
// §4.6: active rate-limit tiers, IP rules, and live credential counts.
type ConfigHandler struct {
	rateLimits  *ratelimit.Config
	ipRules     *ratelimit.IPRules
	credentials *auth.CredentialStore
	analytics   *analytics.Engine
}

// NewConfigHandler wires the gateway's live configuration into the handler.
func NewConfigHandler(rateLimits *ratelimit.Config, ipRules *ratelimit.IPRules, credentials *auth.CredentialStore, analyticsEngine *analytics.Engine) *ConfigHandler {
	return &ConfigHandler{rateLimits: rateLimits, ipRules: ipRules, credentials: credentials, analytics: analyticsEngine}
}

type configResponse struct {
	RateLimits    *ratelimit.Config `json:"rateLimits"`
	IPRules       *ratelimit.IPRules `json:"ipRules"`
	ActiveKeys    int               `json:"activeKeys"`
	ActiveKeyUses int               `json:"activeKeyUses"`
}

// Get returns {rateLimits, ipRules, activeKeys: count(active), activeKeyUses}.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	activeKeys := 0
	for _, cred := range h.credentials.List() {
		if cred.Active {
			activeKeys++
		}
	}

	resp := configResponse{
		RateLimits:    h.rateLimits,
		IPRules:       h.ipRules,
		ActiveKeys:    activeKeys,
		ActiveKeyUses: h.analytics.Snapshot().ActiveKeyUses,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
