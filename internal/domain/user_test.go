package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
)

func TestRecordFailedAttemptLocksAtThreshold(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	user := domain.User{
		UserID: uuid.New(),
		Email:  "user@example.com",
		Status: domain.StatusActive,
	}
	correlationID := uuid.New()

	for i := 1; i <= 4; i++ {
		res := domain.RecordFailedAttempt(user, now, 5, 15*time.Minute, "127.0.0.1", correlationID)
		user = res.User
		if res.Locked {
			t.Fatalf("attempt %d should not lock", i)
		}
		if res.RemainingAttempts != 5-i {
			t.Fatalf("attempt %d: expected %d remaining, got %d", i, 5-i, res.RemainingAttempts)
		}
		if len(res.Events) != 1 || res.Events[0].EventType != domain.EventAuthenticationFailed {
			t.Fatalf("attempt %d: expected single authentication_failed event", i)
		}
	}

	res := domain.RecordFailedAttempt(user, now, 5, 15*time.Minute, "127.0.0.1", correlationID)
	if !res.Locked {
		t.Fatalf("fifth attempt must lock")
	}
	if res.User.Status != domain.StatusLocked {
		t.Fatalf("expected LOCKED status, got %s", res.User.Status)
	}
	if res.User.LockedUntil == nil || !res.User.LockedUntil.Equal(now.Add(15*time.Minute)) {
		t.Fatalf("expected locked_until = now + lockout, got %v", res.User.LockedUntil)
	}
	if len(res.Events) != 2 || res.Events[1].EventType != domain.EventAccountLocked {
		t.Fatalf("expected failed + locked events, got %d", len(res.Events))
	}
}

func TestRecordFailedAttemptNeverLocksInactiveStatuses(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for _, status := range []domain.Status{
		domain.StatusSuspended,
		domain.StatusDeactivated,
		domain.StatusDeleted,
		domain.StatusPendingVerification,
	} {
		user := domain.User{
			UserID:         uuid.New(),
			Email:          "user@example.com",
			Status:         status,
			FailedAttempts: 4,
		}
		res := domain.RecordFailedAttempt(user, now, 5, 15*time.Minute, "127.0.0.1", uuid.New())
		if res.Locked {
			t.Fatalf("%s: threshold attempt must not lock", status)
		}
		if res.User.Status != status {
			t.Fatalf("%s: status must be preserved, got %s", status, res.User.Status)
		}
		if res.User.LockedUntil != nil {
			t.Fatalf("%s: locked_until must stay nil", status)
		}
		if len(res.Events) != 1 || res.Events[0].EventType != domain.EventAuthenticationFailed {
			t.Fatalf("%s: expected only authentication_failed, got %d events", status, len(res.Events))
		}
		// ResolveExpiredLock must find nothing to resolve: the only road to
		// ACTIVE runs through a genuine LOCKED transition.
		if _, _, ok := domain.ResolveExpiredLock(res.User, now.Add(time.Hour), uuid.New()); ok {
			t.Fatalf("%s: inactive account must not resolve to ACTIVE", status)
		}
	}
}

func TestLockedUntilInvariantHolds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	res := domain.RecordFailedAttempt(domain.User{UserID: uuid.New(), Status: domain.StatusActive, FailedAttempts: 4}, now, 5, time.Minute, "", uuid.New())
	if (res.User.Status == domain.StatusLocked) != (res.User.LockedUntil != nil) {
		t.Fatalf("locked_until must be set iff status is LOCKED")
	}

	unlocked, _, ok := domain.ResolveExpiredLock(res.User, now.Add(2*time.Minute), uuid.New())
	if !ok {
		t.Fatalf("expected expired lock to resolve")
	}
	if (unlocked.Status == domain.StatusLocked) != (unlocked.LockedUntil != nil) {
		t.Fatalf("locked_until must be cleared on unlock")
	}
}

func TestResolveExpiredLock(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	locked := domain.User{UserID: uuid.New(), Status: domain.StatusLocked, FailedAttempts: 5, LockedUntil: &past}
	next, ev, ok := domain.ResolveExpiredLock(locked, now, uuid.New())
	if !ok {
		t.Fatalf("expected transition for expired lock")
	}
	if next.Status != domain.StatusActive || next.FailedAttempts != 0 || next.LockedUntil != nil {
		t.Fatalf("expected clean ACTIVE state, got %+v", next)
	}
	if ev.EventType != domain.EventAccountUnlocked {
		t.Fatalf("expected account.unlocked event, got %s", ev.EventType)
	}

	stillLocked := domain.User{UserID: uuid.New(), Status: domain.StatusLocked, LockedUntil: &future}
	if _, _, ok := domain.ResolveExpiredLock(stillLocked, now, uuid.New()); ok {
		t.Fatalf("active lock must not resolve")
	}
	active := domain.User{UserID: uuid.New(), Status: domain.StatusActive}
	if _, _, ok := domain.ResolveExpiredLock(active, now, uuid.New()); ok {
		t.Fatalf("active account must not resolve")
	}
}

func TestRecordSuccessfulAuthResetsCounters(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	user := domain.User{UserID: uuid.New(), Email: "user@example.com", Status: domain.StatusActive, FailedAttempts: 3}

	next, ev := domain.RecordSuccessfulAuth(user, now, "fp-1", "127.0.0.1", uuid.New())
	if next.FailedAttempts != 0 {
		t.Fatalf("expected counter reset, got %d", next.FailedAttempts)
	}
	if next.LastLoginAt == nil || !next.LastLoginAt.Equal(now) {
		t.Fatalf("expected last_login_at stamp")
	}
	if next.LastDeviceFingerprint != "fp-1" {
		t.Fatalf("expected fingerprint stamp, got %q", next.LastDeviceFingerprint)
	}
	if ev.EventType != domain.EventAuthenticationSucceeded {
		t.Fatalf("expected authentication_succeeded event, got %s", ev.EventType)
	}
}

func TestDeviceTrustUsable(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	trust := domain.DeviceTrust{
		Fingerprint: "fp-1",
		UserAgent:   "agent-1",
		ExpiresAt:   now.Add(time.Hour),
	}

	cases := []struct {
		name        string
		fingerprint string
		userAgent   string
		at          time.Time
		want        bool
	}{
		{name: "exact match", fingerprint: "fp-1", userAgent: "agent-1", at: now, want: true},
		{name: "wrong fingerprint", fingerprint: "fp-2", userAgent: "agent-1", at: now, want: false},
		{name: "wrong user agent", fingerprint: "fp-1", userAgent: "agent-2", at: now, want: false},
		{name: "expired", fingerprint: "fp-1", userAgent: "agent-1", at: now.Add(2 * time.Hour), want: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := trust.Usable(tc.fingerprint, tc.userAgent, tc.at); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestTopicFamily(t *testing.T) {
	t.Parallel()

	cases := []struct {
		eventType string
		want      string
	}{
		{eventType: domain.EventAuthenticationFailed, want: "identity.account-events"},
		{eventType: domain.EventAccountLocked, want: "identity.account-events"},
		{eventType: domain.EventMFAChallengeInitiated, want: "identity.mfa-events"},
		{eventType: domain.EventDeviceRevoked, want: "identity.device-events"},
		{eventType: domain.EventSessionCreated, want: "identity.session-events"},
	}
	for _, tc := range cases {
		if got := domain.TopicFamily(tc.eventType); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.eventType, tc.want, got)
		}
	}
}
