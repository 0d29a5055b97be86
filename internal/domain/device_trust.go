package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDeviceTrustTTL is how long a remembered device may bypass MFA.
const DefaultDeviceTrustTTL = 30 * 24 * time.Hour

// MaxDeviceTrustsPerUser caps active trusts; creating one past the cap
// evicts the single oldest by CreatedAt.
const MaxDeviceTrustsPerUser = 10

// DeviceTrust is a remembered device permitted to skip MFA. The IP address
// is informational only and never enforced on reuse.
type DeviceTrust struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Fingerprint string
	UserAgent   string
	IPAddress   string
	CreatedAt   time.Time
	LastUsedAt  time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the trust is past its wall-clock expiry.
func (t DeviceTrust) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Matches reports whether the trust covers the presented device. Both the
// fingerprint and the user agent must match exactly; an IP change never
// invalidates a trust.
func (t DeviceTrust) Matches(fingerprint, userAgent string) bool {
	return t.Fingerprint == fingerprint && t.UserAgent == userAgent
}

// Usable reports whether the trust may bypass MFA for the presented device.
func (t DeviceTrust) Usable(fingerprint, userAgent string, now time.Time) bool {
	return !t.Expired(now) && t.Matches(fingerprint, userAgent)
}

// RemainingTTL is the time left before expiry; using a trust updates
// LastUsedAt but never extends ExpiresAt, so this is monotonically
// non-increasing between uses.
func (t DeviceTrust) RemainingTTL(now time.Time) time.Duration {
	remaining := t.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
