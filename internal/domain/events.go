package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event type names. The prefix selects the downstream topic family.
const (
	EventAuthenticationSucceeded  = "account.authentication_succeeded"
	EventAuthenticationFailed     = "account.authentication_failed"
	EventAccountLocked            = "account.locked"
	EventAccountUnlocked          = "account.unlocked"
	EventMFAChallengeInitiated    = "mfa.challenge_initiated"
	EventMFAVerificationSucceeded = "mfa.verification_succeeded"
	EventDeviceRemembered         = "device.remembered"
	EventDeviceRevoked            = "device.revoked"
	EventSessionCreated           = "session.created"
	EventSessionInvalidated       = "session.invalidated"
)

const (
	UnlockReasonLockoutExpired = "LOCKOUT_EXPIRED"

	DeviceRevokeReasonLimitExceeded  = "LIMIT_EXCEEDED"
	DeviceRevokeReasonUserRevoked    = "USER_REVOKED"
	DeviceRevokeReasonUserRevokedAll = "USER_REVOKED_ALL"

	SessionInvalidateReasonLogout          = "LOGOUT"
	SessionInvalidateReasonConcurrentLimit = "CONCURRENT_LIMIT"
	SessionInvalidateReasonTokenCompromise = "TOKEN_FAMILY_COMPROMISED"
)

// EventPayload is the tagged-union contract for event bodies. Each concrete
// payload names its own event type and aggregate kind, so the envelope never
// needs runtime introspection to serialize it.
type EventPayload interface {
	EventType() string
	AggregateType() string
}

// Event is the immutable envelope appended to the event store and published
// downstream. Payload is pre-serialized at construction time; metadata is
// stored as first-class columns.
type Event struct {
	EventID       uuid.UUID
	EventType     string
	EventVersion  int
	OccurredAt    time.Time
	AggregateID   uuid.UUID
	AggregateType string
	CorrelationID uuid.UUID
	Payload       []byte
}

// NewEvent builds an envelope from a typed payload. Serialization happens
// here, once, through the payload's explicit struct contract.
func NewEvent(aggregateID, correlationID uuid.UUID, occurredAt time.Time, payload EventPayload) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payload types are plain structs; a marshal failure is a programming
		// error, not a runtime condition.
		panic(fmt.Sprintf("marshal %s payload: %v", payload.EventType(), err))
	}
	return Event{
		EventID:       uuid.New(),
		EventType:     payload.EventType(),
		EventVersion:  1,
		OccurredAt:    occurredAt,
		AggregateID:   aggregateID,
		AggregateType: payload.AggregateType(),
		CorrelationID: correlationID,
		Payload:       raw,
	}
}

type AuthenticationSucceededPayload struct {
	UserID            uuid.UUID `json:"user_id"`
	Email             string    `json:"email"`
	IPAddress         string    `json:"ip_address,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	AuthenticatedAt   time.Time `json:"authenticated_at"`
}

func (AuthenticationSucceededPayload) EventType() string     { return EventAuthenticationSucceeded }
func (AuthenticationSucceededPayload) AggregateType() string { return "user" }

type AuthenticationFailedPayload struct {
	UserID         uuid.UUID `json:"user_id"`
	Email          string    `json:"email"`
	FailedAttempts int       `json:"failed_attempts"`
	IPAddress      string    `json:"ip_address,omitempty"`
	AttemptedAt    time.Time `json:"attempted_at"`
}

func (AuthenticationFailedPayload) EventType() string     { return EventAuthenticationFailed }
func (AuthenticationFailedPayload) AggregateType() string { return "user" }

type AccountLockedPayload struct {
	UserID         uuid.UUID `json:"user_id"`
	FailedAttempts int       `json:"failed_attempts"`
	LockedAt       time.Time `json:"locked_at"`
	LockedUntil    time.Time `json:"locked_until"`
}

func (AccountLockedPayload) EventType() string     { return EventAccountLocked }
func (AccountLockedPayload) AggregateType() string { return "user" }

type AccountUnlockedPayload struct {
	UserID     uuid.UUID `json:"user_id"`
	Reason     string    `json:"reason"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

func (AccountUnlockedPayload) EventType() string     { return EventAccountUnlocked }
func (AccountUnlockedPayload) AggregateType() string { return "user" }

type MFAChallengeInitiatedPayload struct {
	UserID      uuid.UUID `json:"user_id"`
	Method      string    `json:"method"`
	InitiatedAt time.Time `json:"initiated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (MFAChallengeInitiatedPayload) EventType() string     { return EventMFAChallengeInitiated }
func (MFAChallengeInitiatedPayload) AggregateType() string { return "user" }

type MFAVerificationSucceededPayload struct {
	UserID     uuid.UUID `json:"user_id"`
	Method     string    `json:"method"`
	VerifiedAt time.Time `json:"verified_at"`
}

func (MFAVerificationSucceededPayload) EventType() string     { return EventMFAVerificationSucceeded }
func (MFAVerificationSucceededPayload) AggregateType() string { return "user" }

type DeviceRememberedPayload struct {
	DeviceTrustID uuid.UUID `json:"device_trust_id"`
	UserID        uuid.UUID `json:"user_id"`
	Fingerprint   string    `json:"fingerprint"`
	RememberedAt  time.Time `json:"remembered_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (DeviceRememberedPayload) EventType() string     { return EventDeviceRemembered }
func (DeviceRememberedPayload) AggregateType() string { return "user" }

type DeviceRevokedPayload struct {
	DeviceTrustID uuid.UUID `json:"device_trust_id"`
	UserID        uuid.UUID `json:"user_id"`
	Reason        string    `json:"reason"`
	RevokedAt     time.Time `json:"revoked_at"`
}

func (DeviceRevokedPayload) EventType() string     { return EventDeviceRevoked }
func (DeviceRevokedPayload) AggregateType() string { return "user" }

type SessionCreatedPayload struct {
	SessionID   string    `json:"session_id"`
	UserID      uuid.UUID `json:"user_id"`
	DeviceID    string    `json:"device_id,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	TokenFamily string    `json:"token_family"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (SessionCreatedPayload) EventType() string     { return EventSessionCreated }
func (SessionCreatedPayload) AggregateType() string { return "user" }

type SessionInvalidatedPayload struct {
	SessionID     string    `json:"session_id"`
	UserID        uuid.UUID `json:"user_id"`
	Reason        string    `json:"reason"`
	InvalidatedAt time.Time `json:"invalidated_at"`
}

func (SessionInvalidatedPayload) EventType() string     { return EventSessionInvalidated }
func (SessionInvalidatedPayload) AggregateType() string { return "user" }

// TopicFamily maps an event type to its downstream topic family by prefix.
// Partitioning within a topic is by aggregate id, so per-user ordering holds.
func TopicFamily(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "mfa."):
		return "identity.mfa-events"
	case strings.HasPrefix(eventType, "device."):
		return "identity.device-events"
	case strings.HasPrefix(eventType, "session."):
		return "identity.session-events"
	default:
		return "identity.account-events"
	}
}
