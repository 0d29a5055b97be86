package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/viralforge/identity-core/internal/domain"
)

func TestMapDomainErrorTypedDetails(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	status, code, _, details := mapDomainError(rec, &domain.InvalidCredentialsError{RemainingAttempts: 2})
	if status != http.StatusUnauthorized || code != "INVALID_CREDENTIALS" {
		t.Fatalf("unexpected mapping: %d %s", status, code)
	}
	if details["remaining_attempts"] != 2 {
		t.Fatalf("expected remaining_attempts detail, got %v", details)
	}

	rec = httptest.NewRecorder()
	lockedUntil := time.Now().UTC().Add(15 * time.Minute)
	status, code, _, details = mapDomainError(rec, &domain.AccountLockedError{
		LockedUntil:      lockedUntil,
		RemainingSeconds: 900,
	})
	if status != http.StatusTooManyRequests || code != "ACCOUNT_LOCKED" {
		t.Fatalf("unexpected mapping: %d %s", status, code)
	}
	if rec.Header().Get("Retry-After") != "900" {
		t.Fatalf("expected Retry-After header, got %q", rec.Header().Get("Retry-After"))
	}
	if details["remaining_seconds"] != 900 {
		t.Fatalf("expected remaining_seconds detail, got %v", details)
	}

	rec = httptest.NewRecorder()
	status, code, _, details = mapDomainError(rec, &domain.RetryAfterError{
		Kind:              domain.ErrSMSRateLimited,
		RetryAfterSeconds: 120,
	})
	if status != http.StatusTooManyRequests || code != "SMS_RATE_LIMITED" {
		t.Fatalf("unexpected mapping: %d %s", status, code)
	}
	if rec.Header().Get("Retry-After") != "120" {
		t.Fatalf("expected Retry-After header, got %q", rec.Header().Get("Retry-After"))
	}
	if details["retry_after_seconds"] != 120 {
		t.Fatalf("expected retry_after_seconds detail, got %v", details)
	}

	// The resend cooldown is a distinct outcome from the send-window budget.
	rec = httptest.NewRecorder()
	status, code, _, details = mapDomainError(rec, &domain.RetryAfterError{
		Kind:              domain.ErrSMSCooldownActive,
		RetryAfterSeconds: 45,
	})
	if status != http.StatusTooManyRequests || code != "SMS_COOLDOWN_ACTIVE" {
		t.Fatalf("unexpected cooldown mapping: %d %s", status, code)
	}
	if rec.Header().Get("Retry-After") != "45" {
		t.Fatalf("expected Retry-After header, got %q", rec.Header().Get("Retry-After"))
	}
	if details["retry_after_seconds"] != 45 {
		t.Fatalf("expected retry_after_seconds detail, got %v", details)
	}
}

func TestMapDomainErrorSentinels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{err: domain.ErrUnauthorized, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{err: domain.ErrMFAInvalidToken, wantStatus: http.StatusUnauthorized, wantCode: "MFA_CHALLENGE_INVALID"},
		{err: domain.ErrMFAExpired, wantStatus: http.StatusUnauthorized, wantCode: "MFA_CHALLENGE_EXPIRED"},
		{err: domain.ErrMFACodeAlreadyUsed, wantStatus: http.StatusUnauthorized, wantCode: "MFA_CODE_ALREADY_USED"},
		{err: domain.ErrSMSSendFailed, wantStatus: http.StatusServiceUnavailable, wantCode: "SMS_UNAVAILABLE"},
		{err: domain.ErrDeviceTrustNotFound, wantStatus: http.StatusNotFound, wantCode: "DEVICE_TRUST_NOT_FOUND"},
		{err: domain.ErrSessionNotFound, wantStatus: http.StatusNotFound, wantCode: "SESSION_NOT_FOUND"},
		{err: fmt.Errorf("wrapped: %w", domain.ErrInvalidInput), wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		status, code, _, _ := mapDomainError(rec, tc.err)
		if status != tc.wantStatus || code != tc.wantCode {
			t.Fatalf("%v: expected %d %s, got %d %s", tc.err, tc.wantStatus, tc.wantCode, status, code)
		}
	}
}

func TestBearerTokenFromHeader(t *testing.T) {
	t.Parallel()

	if token, err := bearerTokenFromHeader("Bearer abc123"); err != nil || token != "abc123" {
		t.Fatalf("expected token extraction, got %q %v", token, err)
	}
	for _, header := range []string{"", "Bearer ", "Basic abc123", "abc123"} {
		if _, err := bearerTokenFromHeader(header); err == nil {
			t.Fatalf("expected error for header %q", header)
		}
	}
}

func TestReadIPPrefersForwardedFor(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/identity/v1/signin", nil)
	r.RemoteAddr = "10.0.0.9:4431"
	if got := readIP(r); got != "10.0.0.9" {
		t.Fatalf("expected remote addr host, got %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := readIP(r); got != "203.0.113.7" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}

func TestIPRateLimiterThrottlesPerIP(t *testing.T) {
	t.Parallel()

	limiter := newIPRateLimiter(1, 2)
	if !limiter.allow("198.51.100.1") || !limiter.allow("198.51.100.1") {
		t.Fatalf("burst capacity should admit first requests")
	}
	if limiter.allow("198.51.100.1") {
		t.Fatalf("expected throttle after burst exhaustion")
	}
	// Other clients keep their own budget.
	if !limiter.allow("198.51.100.2") {
		t.Fatalf("expected independent budget per ip")
	}
}
