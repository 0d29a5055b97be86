package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
)

// UserTransition is applied to the current user state inside a row-locked
// transaction. It returns the next state plus the events describing the
// change; the repository persists both atomically.
type UserTransition func(domain.User) (domain.User, []domain.Event, error)

// UserRepository defines persistence operations for user identities.
// UpdateWithEvents exists so lockout counters and session completion never
// race: the callback runs under a SELECT ... FOR UPDATE on the user row,
// and the state write, event-store append, and outbox enqueue share one
// transaction.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	UpdateWithEvents(ctx context.Context, userID uuid.UUID, apply UserTransition) (domain.User, error)
}

// EventStore is the append-only log of domain facts. Append also enqueues
// each event for publication so the store write happens-before the broker
// publish. Events are never mutated or deleted.
type EventStore interface {
	Append(ctx context.Context, events ...domain.Event) error
	FindByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]domain.Event, error)
	FindByEventTypeAndAggregateID(ctx context.Context, eventType string, aggregateID uuid.UUID) ([]domain.Event, error)
}

// DeviceTrustRepository owns trusted-device records. Create enforces the
// per-user cap inside its own transaction: when the cap is reached it
// deletes the single oldest trust by CreatedAt and appends
// DeviceRevoked(LIMIT_EXCEEDED) for it before inserting the new record and
// appending DeviceRemembered. Delete and DeleteAll append the matching
// DeviceRevoked events in the same transaction as the row removal.
type DeviceTrustRepository interface {
	Create(ctx context.Context, trust domain.DeviceTrust, maxPerUser int, correlationID uuid.UUID) (evicted *domain.DeviceTrust, err error)
	ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.DeviceTrust, error)
	TouchLastUsed(ctx context.Context, trustID uuid.UUID, usedAt time.Time) error
	Delete(ctx context.Context, userID, trustID uuid.UUID, reason string, correlationID uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID, reason string, correlationID uuid.UUID) (int, error)
}

// MFASettingsRepository exposes second-factor enrollment owned by the
// MFA-method collaborators. This core only reads it when issuing and
// verifying challenges.
type MFASettingsRepository interface {
	GetSettings(ctx context.Context, userID uuid.UUID) (domain.MFASettings, error)
}

// OutboxRecord represents durable publish state, including retry/error
// metadata. Rows are written alongside the event-store append and drained
// by the outbox worker.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for domain events.
// This explicit contract enables the transactional outbox pattern without
// leaking DB details into the worker.
type OutboxRepository interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
