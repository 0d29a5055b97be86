package postgres

import (
	"github.com/viralforge/identity-core/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Users        ports.UserRepository
	Events       ports.EventStore
	DeviceTrusts ports.DeviceTrustRepository
	MFASettings  ports.MFASettingsRepository
	Outbox       ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:        &userRepository{db: db},
		Events:       &eventStore{db: db},
		DeviceTrusts: &deviceTrustRepository{db: db},
		MFASettings:  &mfaSettingsRepository{db: db},
		Outbox:       &outboxRepository{db: db},
	}
}
