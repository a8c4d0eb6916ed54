package auth_test

import (
	"testing"
	"time"

	"github.com/alfreddev/alfred-gateway/auth"
)

func TestTOTPRoundTrip(t *testing.T) {
	now := time.Now()
	code := auth.GenerateTOTP("550e8400-e29b-41d4-a716-446655440000", "deadbeef", 0, now)
	if !auth.ValidateTOTP("550e8400-e29b-41d4-a716-446655440000", "deadbeef", code, now) {
		t.Fatalf("expected offset-0 code to validate")
	}

	prevCode := auth.GenerateTOTP("550e8400-e29b-41d4-a716-446655440000", "deadbeef", -1, now)
	if !auth.ValidateTOTP("550e8400-e29b-41d4-a716-446655440000", "deadbeef", prevCode, now) {
		t.Fatalf("expected offset -1 code to validate (window boundary tolerance)")
	}
}

func TestTOTPRejectsWrongCode(t *testing.T) {
	now := time.Now()
	if auth.ValidateTOTP("some-browser", "secret", "0000000000000000", now) {
		t.Fatalf("expected an arbitrary wrong code to fail validation")
	}
}

func TestTOTPAlteredLastCharRejects(t *testing.T) {
	now := time.Now()
	code := auth.GenerateTOTP("browser-1", "secretvalue", 0, now)
	altered := code[:len(code)-1] + flip(code[len(code)-1])
	if auth.ValidateTOTP("browser-1", "secretvalue", altered, now) {
		t.Fatalf("expected an altered last hex char to fail validation")
	}
}

func flip(b byte) string {
	if b == '0' {
		return "1"
	}
	return "0"
}

func TestTOTPCodeLength(t *testing.T) {
	code := auth.GenerateTOTP("browser-2", "secret", 0, time.Now())
	if len(code) != 16 {
		t.Fatalf("expected a 16-hex-char code, got length %d", len(code))
	}
}
