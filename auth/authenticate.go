package auth

import (
	"net/http"
	"strings"
	"time"
)

// AuthError is a terminal authentication failure: a status code and a
// user-visible message, per spec.md §4.2's branch-by-branch contract.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// Authenticator resolves each request into an Identity per spec.md §4.2:
// candidate lookup (header then query param), TOTP branch when a device
// registry is installed, otherwise the static credential branch.
type Authenticator struct {
	Credentials *CredentialStore
	Devices     *DeviceRegistry // nil disables the TOTP branch
}

// NewAuthenticator wires a credential store and an optional device registry.
func NewAuthenticator(creds *CredentialStore, devices *DeviceRegistry) *Authenticator {
	return &Authenticator{Credentials: creds, Devices: devices}
}

// Authenticate resolves (clientId, tier, credentialValue) for r. ip is the
// caller's resolved remote address, used as the fallback clientId and for
// device lastIp bookkeeping.
func (a *Authenticator) Authenticate(r *http.Request, ip string) (Identity, *AuthError) {
	candidate := r.Header.Get("X-API-Key")
	if candidate == "" {
		candidate = r.URL.Query().Get("apiKey")
	}
	if candidate == "" {
		return Identity{ClientID: ip, Tier: "free", Authenticated: false}, nil
	}

	if strings.HasPrefix(candidate, "totp_") && a.Devices != nil {
		return a.authenticateTOTP(candidate, ip)
	}

	return a.authenticateStatic(candidate)
}

func (a *Authenticator) authenticateTOTP(candidate, ip string) (Identity, *AuthError) {
	browserID, code, ok := parseTOTPKey(candidate)
	if !ok {
		return Identity{}, &AuthError{Status: http.StatusUnauthorized, Message: "Malformed TOTP key"}
	}

	device, found := a.Devices.Get(browserID)
	if !found {
		return Identity{}, &AuthError{Status: http.StatusUnauthorized, Message: "Device not registered or expired"}
	}

	if !ValidateTOTP(browserID, device.SharedSecret, code, time.Now()) {
		return Identity{}, &AuthError{Status: http.StatusUnauthorized, Message: "Invalid or expired code"}
	}

	a.Devices.Touch(browserID, ip)
	return Identity{
		ClientID:        browserID,
		Tier:            "free",
		CredentialValue: candidate,
		Authenticated:   true,
	}, nil
}

func (a *Authenticator) authenticateStatic(candidate string) (Identity, *AuthError) {
	cred, ok := a.Credentials.Lookup(candidate)
	if !ok {
		return Identity{}, &AuthError{Status: http.StatusUnauthorized, Message: "Invalid or revoked API key"}
	}
	return Identity{
		ClientID:        cred.ID,
		Tier:            cred.Tier,
		CredentialValue: candidate,
		Authenticated:   true,
	}, nil
}

// parseTOTPKey splits "totp_<browserId>_<code>": the code is the final
// '_'-separated segment, the browserId is everything between the prefix
// and that last separator. Per spec.md §9's design note this grammar is
// loose — standard UUIDv4 browserIds contain no underscore, so it is safe
// in practice, but a stricter totp_<uuid>_<hex{16}> grammar would be more
// defensive.
func parseTOTPKey(candidate string) (browserID, code string, ok bool) {
	rest := strings.TrimPrefix(candidate, "totp_")
	idx := strings.LastIndex(rest, "_")
	if idx < 0 || idx == len(rest)-1 {
		return "", "", false
	}
	browserID = rest[:idx]
	code = rest[idx+1:]
	if browserID == "" || code == "" {
		return "", "", false
	}
	return browserID, code, true
}
