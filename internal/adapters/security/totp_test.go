package security

import (
	"testing"
	"time"

	"github.com/xlzd/gotp"
)

const testTOTPSecret = "JBSWY3DPEHPK3PXP"

func TestTOTPVerifyAcceptsCurrentStep(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 14, 10, 0, 15, 0, time.UTC)
	code := gotp.NewDefaultTOTP(testTOTPSecret).At(at.Unix())

	v := NewTOTPVerifier()
	if !v.Verify(testTOTPSecret, code, at) {
		t.Fatalf("expected current-step code to verify")
	}
}

func TestTOTPVerifyToleratesOneStepOfSkew(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 14, 10, 0, 15, 0, time.UTC)
	totp := gotp.NewDefaultTOTP(testTOTPSecret)
	v := NewTOTPVerifier()

	if !v.Verify(testTOTPSecret, totp.At(at.Unix()-30), at) {
		t.Fatalf("expected previous-step code to verify")
	}
	if !v.Verify(testTOTPSecret, totp.At(at.Unix()+30), at) {
		t.Fatalf("expected next-step code to verify")
	}
	if v.Verify(testTOTPSecret, totp.At(at.Unix()-120), at) {
		t.Fatalf("expected stale code outside skew window to fail")
	}
}

func TestTOTPVerifyRejectsBadInput(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 14, 10, 0, 15, 0, time.UTC)
	v := NewTOTPVerifier()

	if v.Verify("", "123456", at) {
		t.Fatalf("empty secret must fail")
	}
	if v.Verify(testTOTPSecret, "", at) {
		t.Fatalf("empty code must fail")
	}
	if v.Verify(testTOTPSecret, "000000", at) {
		t.Fatalf("arbitrary code must fail")
	}
}
