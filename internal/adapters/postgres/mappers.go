package postgres

import (
	"errors"
	"strings"

	"github.com/viralforge/identity-core/internal/domain"
	"gorm.io/gorm"
)

func toDomainUser(row userModel) domain.User {
	return domain.User{
		UserID:                row.UserID,
		Email:                 row.Email,
		PasswordHash:          row.PasswordHash,
		Status:                domain.Status(row.Status),
		FailedAttempts:        row.FailedAttempts,
		LockedUntil:           row.LockedUntil,
		MFAEnabled:            row.MFAEnabled,
		LastLoginAt:           row.LastLoginAt,
		LastDeviceFingerprint: row.LastDeviceFingerprint,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}

func toUserModel(u domain.User) userModel {
	return userModel{
		UserID:                u.UserID,
		Email:                 u.Email,
		PasswordHash:          u.PasswordHash,
		Status:                string(u.Status),
		FailedAttempts:        u.FailedAttempts,
		LockedUntil:           u.LockedUntil,
		MFAEnabled:            u.MFAEnabled,
		LastLoginAt:           u.LastLoginAt,
		LastDeviceFingerprint: u.LastDeviceFingerprint,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}

func toDomainDeviceTrust(row deviceTrustModel) domain.DeviceTrust {
	ip := ""
	if row.IPAddress != nil {
		ip = *row.IPAddress
	}
	return domain.DeviceTrust{
		ID:          row.DeviceTrustID,
		UserID:      row.UserID,
		Fingerprint: row.Fingerprint,
		UserAgent:   row.UserAgent,
		IPAddress:   ip,
		CreatedAt:   row.CreatedAt,
		LastUsedAt:  row.LastUsedAt,
		ExpiresAt:   row.ExpiresAt,
	}
}

func toDeviceTrustModel(t domain.DeviceTrust) deviceTrustModel {
	return deviceTrustModel{
		DeviceTrustID: t.ID,
		UserID:        t.UserID,
		Fingerprint:   t.Fingerprint,
		UserAgent:     t.UserAgent,
		IPAddress:     nullableString(t.IPAddress),
		CreatedAt:     t.CreatedAt,
		LastUsedAt:    t.LastUsedAt,
		ExpiresAt:     t.ExpiresAt,
	}
}

func toDomainEvent(row domainEventModel) domain.Event {
	return domain.Event{
		EventID:       row.EventID,
		EventType:     row.EventType,
		EventVersion:  row.EventVersion,
		OccurredAt:    row.OccurredAt,
		AggregateID:   row.AggregateID,
		AggregateType: row.AggregateType,
		CorrelationID: row.CorrelationID,
		Payload:       []byte(row.Payload),
	}
}

func toDomainEventModel(ev domain.Event) domainEventModel {
	return domainEventModel{
		EventID:       ev.EventID,
		EventType:     ev.EventType,
		EventVersion:  ev.EventVersion,
		OccurredAt:    ev.OccurredAt,
		AggregateID:   ev.AggregateID,
		AggregateType: ev.AggregateType,
		CorrelationID: ev.CorrelationID,
		Payload:       string(ev.Payload),
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
