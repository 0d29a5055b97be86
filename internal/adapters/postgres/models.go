package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID                uuid.UUID  `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email                 string     `gorm:"column:email"`
	PasswordHash          string     `gorm:"column:password_hash"`
	Status                string     `gorm:"column:status"`
	FailedAttempts        int        `gorm:"column:failed_attempts"`
	LockedUntil           *time.Time `gorm:"column:locked_until"`
	MFAEnabled            bool       `gorm:"column:mfa_enabled"`
	LastLoginAt           *time.Time `gorm:"column:last_login_at"`
	LastDeviceFingerprint string     `gorm:"column:last_device_fingerprint"`
	CreatedAt             time.Time  `gorm:"column:created_at"`
	UpdatedAt             time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type deviceTrustModel struct {
	DeviceTrustID uuid.UUID `gorm:"column:device_trust_id;type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id"`
	Fingerprint   string    `gorm:"column:fingerprint"`
	UserAgent     string    `gorm:"column:user_agent"`
	IPAddress     *string   `gorm:"column:ip_address"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	LastUsedAt    time.Time `gorm:"column:last_used_at"`
	ExpiresAt     time.Time `gorm:"column:expires_at"`
}

func (deviceTrustModel) TableName() string { return "device_trusts" }

type domainEventModel struct {
	EventID       uuid.UUID `gorm:"column:event_id;type:uuid;primaryKey"`
	EventType     string    `gorm:"column:event_type"`
	EventVersion  int       `gorm:"column:event_version"`
	OccurredAt    time.Time `gorm:"column:occurred_at"`
	AggregateID   uuid.UUID `gorm:"column:aggregate_id"`
	AggregateType string    `gorm:"column:aggregate_type"`
	CorrelationID uuid.UUID `gorm:"column:correlation_id"`
	Payload       string    `gorm:"column:payload;type:jsonb"`
}

func (domainEventModel) TableName() string { return "domain_events" }

type identityOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (identityOutboxModel) TableName() string { return "identity_outbox" }

type mfaSettingsModel struct {
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	TOTPSecret  string    `gorm:"column:totp_secret"`
	PhoneNumber string    `gorm:"column:phone_number"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (mfaSettingsModel) TableName() string { return "mfa_settings" }

type mfaMethodModel struct {
	MethodID   uuid.UUID `gorm:"column:method_id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id"`
	MethodType string    `gorm:"column:method_type"`
	IsEnabled  bool      `gorm:"column:is_enabled"`
	IsPrimary  bool      `gorm:"column:is_primary"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (mfaMethodModel) TableName() string { return "mfa_methods" }
