package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PasswordHasher is the argon2id-class credential primitive. DummyHash
// returns a precomputed hash of a random password: the orchestrator
// compares against it when no user record exists, so the unknown-user path
// costs the same as a wrong password.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
	DummyHash() string
}

// TOTPVerifier checks a time-based one-time code against an enrolled secret.
type TOTPVerifier interface {
	Verify(secret, code string, at time.Time) bool
}

// SMSSender delivers a one-time code. Delivery itself is a collaborator
// concern; failures surface as ErrSMSSendFailed to the caller.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, code string) error
}

// AuthClaims is the token-bound authentication context.
type AuthClaims struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	SessionID   string    `json:"session_id"`
	TokenFamily string    `json:"token_family"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenSigner signs and validates access tokens for completed sessions.
type TokenSigner interface {
	Sign(claims AuthClaims) (string, error)
	ParseAndValidate(token string) (AuthClaims, error)
}

// Clock abstracts time so expiry behavior is testable; production wiring
// uses time.Now in UTC.
type Clock func() time.Time
