package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
)

// SessionStore persists live sessions in a TTL-capable key-value store.
// The store TTL is a backstop; the application still checks ExpiresAt.
// ListByUser returns sessions ordered oldest-first so cap eviction can
// take the head.
type SessionStore interface {
	Put(ctx context.Context, session domain.Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Session, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// MFAChallengeStore persists short-lived challenges plus the per-user
// consumed-code ledger used for replay protection.
type MFAChallengeStore interface {
	Put(ctx context.Context, challenge domain.MfaChallenge, ttl time.Duration) error
	Get(ctx context.Context, token string) (*domain.MfaChallenge, error)
	Delete(ctx context.Context, token string) error
	MarkCodeConsumed(ctx context.Context, userID uuid.UUID, codeHash string, ttl time.Duration) error
	IsCodeConsumed(ctx context.Context, userID uuid.UUID, codeHash string) (bool, error)
}

// SMSSendState is the current send budget for one user.
type SMSSendState struct {
	SendsInWindow    int
	WindowResetAfter time.Duration
	CooldownActive   bool
	CooldownAfter    time.Duration
}

// SMSRateLimitStore enforces the per-user SMS send budget (window counter)
// and resend cooldown. RecordSend registers one send and starts the
// cooldown atomically.
type SMSRateLimitStore interface {
	Check(ctx context.Context, userID uuid.UUID) (SMSSendState, error)
	RecordSend(ctx context.Context, userID uuid.UUID, window, cooldown time.Duration) error
}
