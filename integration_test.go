package main_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/alfreddev/alfred-gateway/analytics"
	"github.com/alfreddev/alfred-gateway/auth"
	"github.com/alfreddev/alfred-gateway/config"
	"github.com/alfreddev/alfred-gateway/ratelimit"
	"github.com/alfreddev/alfred-gateway/router"
)

// buildGateway wires every collaborator the same way main.go does, minus
// the HTTP listener, so these tests exercise the real pipeline end to end.
func buildGateway(t *testing.T) (http.Handler, *auth.CredentialStore, *auth.DeviceRegistry) {
	t.Helper()

	log := zerolog.New(io.Discard).With().Timestamp().Logger()
	cfg := &config.Config{ServiceName: "it-gateway", Env: "test", AdminToken: "it-token"}

	creds := auth.NewCredentialStore()
	devices, err := auth.NewDeviceRegistry("", 0, 0, 0, 0, log)
	if err != nil {
		t.Fatalf("NewDeviceRegistry: %v", err)
	}
	authenticator := auth.NewAuthenticator(creds, devices)

	rlCfg := ratelimit.DefaultConfig()
	rlEngine := ratelimit.NewEngine(rlCfg, log)
	ipRules := ratelimit.NewIPRules("blocklist", nil, nil)
	analyticsEngine := analytics.NewEngine(analytics.NewBuffer(), rlEngine.Hits)

	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("upstream ok"))
	})

	r := router.New(router.Deps{
		Config:        cfg,
		Logger:        log,
		Authenticator: authenticator,
		Credentials:   creds,
		Devices:       devices,
		IPRules:       ipRules,
		RateLimits:    rlCfg,
		RateEngine:    rlEngine,
		Analytics:     analyticsEngine,
		Upstream:      upstream,
	})
	return r, creds, devices
}

// TestTOTPRoundTrip covers spec.md §8 scenario 5: register a device,
// derive a code from its shared secret, authenticate with it, then
// confirm a tampered code is rejected.
func TestTOTPRoundTrip(t *testing.T) {
	r, _, _ := buildGateway(t)

	browserID := "550e8400-e29b-41d4-a716-446655440000"
	regBody := `{"browserId":"` + browserID + `"}`
	req := httptest.NewRequest(http.MethodPost, "/devices/register", jsonBody(regBody))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusCreated {
		t.Fatalf("registration: expected 201, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}

	var entry struct {
		SharedSecret string `json:"sharedSecret"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode registration response: %v", err)
	}

	code := auth.GenerateTOTP(browserID, entry.SharedSecret, 0, time.Now())

	req = httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("X-API-Key", "totp_"+browserID+"_"+code)
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("TOTP auth: expected 200, got %d", rw.Result().StatusCode)
	}

	tampered := code[:len(code)-1] + flipHexChar(code[len(code)-1])
	req = httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("X-API-Key", "totp_"+browserID+"_"+tampered)
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("tampered TOTP: expected 401, got %d", rw.Result().StatusCode)
	}
}

// TestCredentialLifecycle exercises the admin surface's create/revoke
// contract end to end, then confirms a revoked key stops authenticating.
func TestCredentialLifecycle(t *testing.T) {
	r, _, _ := buildGateway(t)

	createBody := `{"name":"acceptance-suite"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/credentials", jsonBody(createBody))
	req.Header.Set("X-Admin-Token", "it-token")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusCreated {
		t.Fatalf("create credential: expected 201, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}

	var cred struct {
		ID     string `json:"id"`
		Secret string `json:"secret"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &cred); err != nil {
		t.Fatalf("decode credential response: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("X-API-Key", cred.Secret)
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("active credential: expected 200, got %d", rw.Result().StatusCode)
	}

	req = httptest.NewRequest(http.MethodDelete, "/admin/credentials/"+cred.ID, nil)
	req.Header.Set("X-Admin-Token", "it-token")
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d", rw.Result().StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("X-API-Key", cred.Secret)
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked credential: expected 401, got %d", rw.Result().StatusCode)
	}
}

// TestAnalyticsSnapshotAggregation sends three requests through the
// pipeline and checks that the admin snapshot counts all three in
// totalRequests. The literal scenario 6 aggregates are checked in
// analytics/snapshot_test.go.
func TestAnalyticsSnapshotAggregation(t *testing.T) {
	r, _, _ := buildGateway(t)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/a", nil)
		rw := httptest.NewRecorder()
		r.ServeHTTP(rw, req)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/analytics/snapshot", nil)
	req.Header.Set("X-Admin-Token", "it-token")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	var snap struct {
		TotalRequests int `json:"totalRequests"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.TotalRequests != 3 {
		t.Fatalf("expected totalRequests=3, got %d", snap.TotalRequests)
	}
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func flipHexChar(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}
