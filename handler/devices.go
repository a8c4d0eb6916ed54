package handler

import (
	"encoding/json"
	"net/http"

	"github.com/alfreddev/alfred-gateway/auth"
	"github.com/alfreddev/alfred-gateway/middleware"
	"github.com/alfreddev/alfred-gateway/pipelineerr"
	"github.com/go-chi/chi/v5"
)

// DeviceHandler exposes the self-service device-registration endpoint
// TOTP clients use to obtain a sharedSecret, per spec.md §4.5. It is
// mounted outside the authenticated pipeline — registration is how a
// browser first becomes a TOTP client.
type DeviceHandler struct {
	registry *auth.DeviceRegistry
}

// NewDeviceHandler wires a device registry into the handler.
func NewDeviceHandler(registry *auth.DeviceRegistry) *DeviceHandler {
	return &DeviceHandler{registry: registry}
}

type registerDeviceRequest struct {
	BrowserID string `json:"browserId"`
}

// Register handles {browserId} -> the registered entry (sharedSecret
// included), applying the velocity/active-device caps from spec.md §4.5.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pipelineerr.Write(w, pipelineerr.New(http.StatusBadRequest, "Malformed request body"))
		return
	}
	if !auth.ValidBrowserID(req.BrowserID) {
		pipelineerr.Write(w, pipelineerr.New(http.StatusBadRequest, "browserId must be a canonical UUIDv4"))
		return
	}

	ip := middleware.ClientIP(r)
	result := h.registry.Register(req.BrowserID, ip, r.UserAgent())
	if result.StatusCode != 0 {
		pipelineerr.Write(w, pipelineerr.New(result.StatusCode, result.Message))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(result.Entry)
}

// deviceAuditView is DeviceEntry with sharedSecret redacted — the
// management surface can confirm a device's liveness without being able
// to mint TOTP codes on the holder's behalf.
type deviceAuditView struct {
	BrowserID    string `json:"browserId"`
	IP           string `json:"ip"`
	UserAgent    string `json:"userAgent"`
	RegisteredAt string `json:"registeredAt"`
	ExpiresAt    string `json:"expiresAt"`
	LastSeen     string `json:"lastSeen"`
	LastIP       string `json:"lastIp"`
	Active       bool   `json:"active"`
}

// Get resolves an admin lookup of a device by browserId, 404 if absent,
// inactive, or expired.
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	browserID := chi.URLParam(r, "browserId")

	entry, ok := h.registry.Get(browserID)
	if !ok {
		pipelineerr.Write(w, pipelineerr.New(http.StatusNotFound, "Device not found or expired"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(deviceAuditView{
		BrowserID:    entry.BrowserID,
		IP:           entry.IP,
		UserAgent:    entry.UserAgent,
		RegisteredAt: entry.RegisteredAt.Format(timeLayout),
		ExpiresAt:    entry.ExpiresAt.Format(timeLayout),
		LastSeen:     entry.LastSeen.Format(timeLayout),
		LastIP:       entry.LastIP,
		Active:       entry.Active,
	})
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"
