package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
	"github.com/viralforge/identity-core/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

// UpdateWithEvents runs the transition under SELECT ... FOR UPDATE on the
// user row. The state write, event-store append, and outbox enqueue commit
// together, so concurrent failed attempts serialize and a persisted
// transition always has its audit trail.
func (r *userRepository) UpdateWithEvents(ctx context.Context, userID uuid.UUID, apply ports.UserTransition) (domain.User, error) {
	var result domain.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec userModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		next, events, err := apply(toDomainUser(rec))
		if err != nil {
			return err
		}

		updated := toUserModel(next)
		if err := tx.Model(&userModel{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"status":                  updated.Status,
				"failed_attempts":         updated.FailedAttempts,
				"locked_until":            updated.LockedUntil,
				"last_login_at":           updated.LastLoginAt,
				"last_device_fingerprint": updated.LastDeviceFingerprint,
				"updated_at":              updated.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		if err := appendEventsTx(tx, events); err != nil {
			return err
		}

		result = next
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return result, nil
}
