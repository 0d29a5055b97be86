package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type deviceTrustRepository struct {
	db *gorm.DB
}

// userTrustsLocked scopes a query to one user's trust rows, oldest-first,
// locking them for the enclosing transaction. Postgres rejects FOR UPDATE
// combined with aggregates, so callers count the locked rows client side.
func userTrustsLocked(userID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Order("created_at ASC")
	}
}

// trustOwnedBy scopes a mutation to one trust row owned by the given user,
// so a foreign id affects zero rows.
func trustOwnedBy(userID, trustID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("device_trust_id = ?", trustID).Where("user_id = ?", userID)
	}
}

// Create inserts a new trust and enforces the per-user cap in the same
// transaction: expired rows are pruned first, then the single oldest trust
// is evicted if the cap is reached. Eviction and creation both append their
// events so the audit trail commits with the row changes.
func (r *deviceTrustRepository) Create(ctx context.Context, trust domain.DeviceTrust, maxPerUser int, correlationID uuid.UUID) (*domain.DeviceTrust, error) {
	var evicted *domain.DeviceTrust
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", trust.UserID).
			Where("expires_at <= ?", trust.CreatedAt).
			Delete(&deviceTrustModel{}).Error; err != nil {
			return err
		}

		var ids []uuid.UUID
		if err := tx.Model(&deviceTrustModel{}).
			Scopes(userTrustsLocked(trust.UserID)).
			Pluck("device_trust_id", &ids).Error; err != nil {
			return err
		}

		var events []domain.Event
		if maxPerUser > 0 && len(ids) >= maxPerUser {
			// ids are oldest-first and already locked above.
			var oldest deviceTrustModel
			if err := tx.Where("device_trust_id = ?", ids[0]).
				Take(&oldest).Error; err != nil {
				return err
			}
			if err := tx.Where("device_trust_id = ?", oldest.DeviceTrustID).
				Delete(&deviceTrustModel{}).Error; err != nil {
				return err
			}
			old := toDomainDeviceTrust(oldest)
			evicted = &old
			events = append(events, domain.NewEvent(trust.UserID, correlationID, trust.CreatedAt, domain.DeviceRevokedPayload{
				DeviceTrustID: oldest.DeviceTrustID,
				UserID:        trust.UserID,
				Reason:        domain.DeviceRevokeReasonLimitExceeded,
				RevokedAt:     trust.CreatedAt,
			}))
		}

		rec := toDeviceTrustModel(trust)
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		events = append(events, domain.NewEvent(trust.UserID, correlationID, trust.CreatedAt, domain.DeviceRememberedPayload{
			DeviceTrustID: trust.ID,
			UserID:        trust.UserID,
			Fingerprint:   trust.Fingerprint,
			RememberedAt:  trust.CreatedAt,
			ExpiresAt:     trust.ExpiresAt,
		}))

		return appendEventsTx(tx, events)
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

func (r *deviceTrustRepository) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]domain.DeviceTrust, error) {
	var rows []deviceTrustModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("expires_at > ?", now).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.DeviceTrust, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainDeviceTrust(row))
	}
	return result, nil
}

// TouchLastUsed stamps trust usage. ExpiresAt is deliberately left alone;
// using a trust never extends its life.
func (r *deviceTrustRepository) TouchLastUsed(ctx context.Context, trustID uuid.UUID, usedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&deviceTrustModel{}).
		Where("device_trust_id = ?", trustID).
		Update("last_used_at", usedAt).Error
}

// Delete removes one trust scoped to the owning user. A trust belonging to
// a different user comes back ErrNotFound, same as a missing id.
func (r *deviceTrustRepository) Delete(ctx context.Context, userID, trustID uuid.UUID, reason string, correlationID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Scopes(trustOwnedBy(userID, trustID)).Delete(&deviceTrustModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		now := time.Now().UTC()
		return appendEventsTx(tx, []domain.Event{
			domain.NewEvent(userID, correlationID, now, domain.DeviceRevokedPayload{
				DeviceTrustID: trustID,
				UserID:        userID,
				Reason:        reason,
				RevokedAt:     now,
			}),
		})
	})
}

func (r *deviceTrustRepository) DeleteAll(ctx context.Context, userID uuid.UUID, reason string, correlationID uuid.UUID) (int, error) {
	var removed int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []deviceTrustModel
		if err := tx.Scopes(userTrustsLocked(userID)).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Where("user_id = ?", userID).Delete(&deviceTrustModel{}).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		events := make([]domain.Event, 0, len(rows))
		for _, row := range rows {
			events = append(events, domain.NewEvent(userID, correlationID, now, domain.DeviceRevokedPayload{
				DeviceTrustID: row.DeviceTrustID,
				UserID:        userID,
				Reason:        reason,
				RevokedAt:     now,
			}))
		}
		removed = len(rows)
		return appendEventsTx(tx, events)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
