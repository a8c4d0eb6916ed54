package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// windowMs is the TOTP window size: 1 hour. This is a custom HMAC
// construction, not RFC 6238 — see spec.md §1's non-goals.
const windowMs = 3_600_000

// GenerateTOTP computes code(browserId, secret, offset) per spec.md §4.4:
// the first 16 hex chars of HMAC-SHA256(secret, "<browserId>:<windowIndex+offset>").
func GenerateTOTP(browserID, secret string, offset int64, now time.Time) string {
	windowIndex := now.UnixMilli() / windowMs
	msg := fmt.Sprintf("%s:%d", browserID, windowIndex+offset)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	sum := mac.Sum(nil)
	return hex.EncodeToString(sum)[:16]
}

// ValidateTOTP accepts code for offset in {0, -1} to tolerate window
// boundaries. Comparison is constant-time over fixed-length byte buffers.
func ValidateTOTP(browserID, secret, code string, now time.Time) bool {
	for _, offset := range []int64{0, -1} {
		expected := GenerateTOTP(browserID, secret, offset, now)
		if constantTimeEqual(expected, code) {
			return true
		}
	}
	return false
}

// constantTimeEqual compares two strings without leaking timing based on
// where they first differ. Length mismatch short-circuits to false, per
// spec.md §4.4 — a length mismatch is not itself sensitive.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
