package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the authentication lifecycle state of a user account.
type Status string

const (
	StatusActive              Status = "ACTIVE"
	StatusLocked              Status = "LOCKED"
	StatusPendingVerification Status = "PENDING_VERIFICATION"
	StatusSuspended           Status = "SUSPENDED"
	StatusDeactivated         Status = "DEACTIVATED"
	StatusDeleted             Status = "DELETED"
)

// User is the canonical authentication identity aggregate.
// It is an immutable value: transitions return a new User plus the events
// describing the change, and only the persistence layer performs writes.
type User struct {
	UserID                uuid.UUID
	Email                 string
	PasswordHash          string
	Status                Status
	FailedAttempts        int
	LockedUntil           *time.Time
	MFAEnabled            bool
	LastLoginAt           *time.Time
	LastDeviceFingerprint string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CanAuthenticate reports whether the account status permits a signin flow
// to proceed past the password check. LOCKED is handled separately because
// it carries its own expiry semantics.
func (u User) CanAuthenticate() bool {
	return u.Status == StatusActive
}

// LockActive reports whether a LOCKED account's lock window is still open.
func (u User) LockActive(now time.Time) bool {
	return u.Status == StatusLocked && u.LockedUntil != nil && u.LockedUntil.After(now)
}

// LockExpired reports whether a LOCKED account's lock window has passed and
// the account is eligible for automatic unlock.
func (u User) LockExpired(now time.Time) bool {
	return u.Status == StatusLocked && (u.LockedUntil == nil || !u.LockedUntil.After(now))
}

// ResolveExpiredLock transitions LOCKED back to ACTIVE once the lock window
// has passed. It clears the failure counter so the account gets a fresh
// attempt budget, and emits AccountUnlocked. The second return value is
// false when no transition applies.
func ResolveExpiredLock(u User, now time.Time, correlationID uuid.UUID) (User, Event, bool) {
	if !u.LockExpired(now) {
		return u, Event{}, false
	}
	u.Status = StatusActive
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = now
	ev := NewEvent(u.UserID, correlationID, now, AccountUnlockedPayload{
		UserID:     u.UserID,
		Reason:     UnlockReasonLockoutExpired,
		UnlockedAt: now,
	})
	return u, ev, true
}

// FailedAttemptResult describes the outcome of recording one wrong password.
type FailedAttemptResult struct {
	User              User
	Events            []Event
	Locked            bool
	RemainingAttempts int
	LockedUntil       time.Time
}

// RecordFailedAttempt increments the failure counter and, at the configured
// threshold, transitions ACTIVE to LOCKED with lockedUntil = now + duration.
// Only ACTIVE accounts enter the lock state machine: SUSPENDED, DEACTIVATED
// and the other inactive statuses keep their status no matter how many
// failures accrue, because an expired lock resolves to ACTIVE and would
// otherwise launder the account back into service.
// Invariant: lockedUntil is non-nil iff status is LOCKED.
func RecordFailedAttempt(u User, now time.Time, threshold int, lockout time.Duration, ip string, correlationID uuid.UUID) FailedAttemptResult {
	u.FailedAttempts++
	u.UpdatedAt = now

	events := []Event{NewEvent(u.UserID, correlationID, now, AuthenticationFailedPayload{
		UserID:         u.UserID,
		Email:          u.Email,
		FailedAttempts: u.FailedAttempts,
		IPAddress:      ip,
		AttemptedAt:    now,
	})}

	if u.FailedAttempts >= threshold && u.CanAuthenticate() {
		lockedUntil := now.Add(lockout)
		u.Status = StatusLocked
		u.LockedUntil = &lockedUntil
		events = append(events, NewEvent(u.UserID, correlationID, now, AccountLockedPayload{
			UserID:         u.UserID,
			FailedAttempts: u.FailedAttempts,
			LockedAt:       now,
			LockedUntil:    lockedUntil,
		}))
		return FailedAttemptResult{User: u, Events: events, Locked: true, LockedUntil: lockedUntil}
	}

	return FailedAttemptResult{
		User:              u,
		Events:            events,
		RemainingAttempts: remainingAttempts(threshold, u.FailedAttempts),
	}
}

// RecordSuccessfulAuth resets the failure counter and stamps the login
// metadata. Emits AuthenticationSucceeded.
func RecordSuccessfulAuth(u User, now time.Time, fingerprint, ip string, correlationID uuid.UUID) (User, Event) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.Status = StatusActive
	u.LastLoginAt = &now
	if fingerprint != "" {
		u.LastDeviceFingerprint = fingerprint
	}
	u.UpdatedAt = now
	ev := NewEvent(u.UserID, correlationID, now, AuthenticationSucceededPayload{
		UserID:            u.UserID,
		Email:             u.Email,
		IPAddress:         ip,
		DeviceFingerprint: fingerprint,
		AuthenticatedAt:   now,
	})
	return u, ev
}

func remainingAttempts(threshold, failed int) int {
	remaining := threshold - failed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingAttempts exposes the attempt budget arithmetic used by error
// responses: max(0, threshold - failedAttempts).
func (u User) RemainingAttempts(threshold int) int {
	return remainingAttempts(threshold, u.FailedAttempts)
}

// InactiveReason maps non-authenticatable statuses to a stable human reason.
func InactiveReason(status Status) string {
	switch status {
	case StatusPendingVerification:
		return "account pending email verification"
	case StatusSuspended:
		return "account suspended"
	case StatusDeactivated:
		return "account deactivated"
	case StatusDeleted:
		return "account deleted"
	default:
		return "account not active"
	}
}
