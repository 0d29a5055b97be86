package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is the backstop expiry applied in the key-value store.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Session is a live authenticated context. Sessions live in a fast
// key-value store with a native TTL as a second line of defense; expiry is
// otherwise evaluated lazily against ExpiresAt.
type Session struct {
	SessionID       string
	UserID          uuid.UUID
	DeviceID        string
	IPAddress       string
	UserAgent       string
	TokenFamily     string
	RefreshHash     string
	PrevRefreshHash string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	TTLSeconds      int64
}

// Expired reports whether the session is past its lazy expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// MfaChallenge is a single pending second-factor attempt. The SMS code is
// stored hashed; TOTP challenges verify against the enrolled secret instead.
type MfaChallenge struct {
	Token             string    `json:"token"`
	UserID            uuid.UUID `json:"user_id"`
	Email             string    `json:"email"`
	Method            string    `json:"method"`
	SMSCodeHash       string    `json:"sms_code_hash,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	RemainingAttempts int       `json:"remaining_attempts"`
	CorrelationID     uuid.UUID `json:"correlation_id"`
}

// Expired reports whether the challenge is past its wall-clock expiry.
func (c MfaChallenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// MFA method names accepted by challenge verification.
const (
	MFAMethodTOTP  = "TOTP"
	MFAMethodSMS   = "SMS"
	MFAMethodEmail = "EMAIL"
)

// MFASettings is the enrollment state consulted when issuing a challenge.
// Secret storage and code generation belong to MFA-method collaborators;
// this core only needs the lookup.
type MFASettings struct {
	UserID      uuid.UUID
	TOTPSecret  string
	PhoneNumber string
	Methods     []string
}
