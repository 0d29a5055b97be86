package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether email or password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked signals temporary lockout after repeated failed attempts.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive covers every non-authenticatable status except LOCKED.
	ErrAccountInactive = errors.New("account inactive")

	ErrMFAInvalidToken    = errors.New("mfa challenge token invalid")
	ErrMFAExpired         = errors.New("mfa challenge expired")
	ErrMFAInvalidCode     = errors.New("mfa code invalid")
	ErrMFACodeAlreadyUsed = errors.New("mfa code already used")

	ErrSMSRateLimited    = errors.New("sms send rate limited")
	ErrSMSCooldownActive = errors.New("sms resend cooldown active")
	ErrSMSSendFailed     = errors.New("sms send failed")
	ErrSMSNotConfigured  = errors.New("sms delivery not configured")

	// ErrDeviceTrustNotFound is returned for unknown ids and for ids owned by
	// another user. Both outcomes are identical to avoid leaking existence.
	ErrDeviceTrustNotFound = errors.New("device trust not found")

	ErrSessionNotFound = errors.New("session not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidInput    = errors.New("invalid input")
	ErrRateLimited     = errors.New("rate limited")
	ErrConflict        = errors.New("conflict")
)

// InvalidCredentialsError carries how many attempts remain before lockout.
// It is returned identically for unknown users and wrong passwords.
type InvalidCredentialsError struct {
	RemainingAttempts int
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials: %d attempts remaining", e.RemainingAttempts)
}

func (e *InvalidCredentialsError) Unwrap() error { return ErrInvalidCredentials }

// AccountLockedError reports when the lock expires so callers can surface a retry hint.
type AccountLockedError struct {
	LockedUntil      time.Time
	RemainingSeconds int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked for %d more seconds", e.RemainingSeconds)
}

func (e *AccountLockedError) Unwrap() error { return ErrAccountLocked }

// AccountInactiveError distinguishes the inactive status for the API layer
// without changing the authentication outcome.
type AccountInactiveError struct {
	Status Status
	Reason string
}

func (e *AccountInactiveError) Error() string {
	return fmt.Sprintf("account inactive: %s", e.Reason)
}

func (e *AccountInactiveError) Unwrap() error { return ErrAccountInactive }

// MFAInvalidCodeError carries the remaining verification attempt budget.
type MFAInvalidCodeError struct {
	RemainingAttempts int
}

func (e *MFAInvalidCodeError) Error() string {
	return fmt.Sprintf("mfa code invalid: %d attempts remaining", e.RemainingAttempts)
}

func (e *MFAInvalidCodeError) Unwrap() error { return ErrMFAInvalidCode }

// RetryAfterError wraps rate-limit style failures with a retry hint in seconds.
type RetryAfterError struct {
	Kind              error
	RetryAfterSeconds int
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%v: retry after %d seconds", e.Kind, e.RetryAfterSeconds)
}

func (e *RetryAfterError) Unwrap() error { return e.Kind }
