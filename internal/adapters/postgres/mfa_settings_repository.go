package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
	"gorm.io/gorm"
)

type mfaSettingsRepository struct {
	db *gorm.DB
}

// GetSettings assembles the enrollment view: the settings row plus the
// enabled method list, primary method first. A user with no settings row
// comes back empty rather than erroring, since enrollment is owned elsewhere.
func (r *mfaSettingsRepository) GetSettings(ctx context.Context, userID uuid.UUID) (domain.MFASettings, error) {
	settings := domain.MFASettings{UserID: userID}

	var rec mfaSettingsModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.MFASettings{}, err
		}
	} else {
		settings.TOTPSecret = rec.TOTPSecret
		settings.PhoneNumber = rec.PhoneNumber
	}

	var methods []string
	if err := r.db.WithContext(ctx).
		Model(&mfaMethodModel{}).
		Where("user_id = ?", userID).
		Where("is_enabled = TRUE").
		Order("is_primary DESC, method_type ASC").
		Pluck("method_type", &methods).Error; err != nil {
		return domain.MFASettings{}, err
	}
	settings.Methods = methods
	return settings, nil
}
