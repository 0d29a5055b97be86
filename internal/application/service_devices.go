package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
)

// ListDevices returns the user's unexpired trusted devices.
func (s *Service) ListDevices(ctx context.Context, userID uuid.UUID) ([]DeviceItem, error) {
	trusts, err := s.deviceTrusts.ListActive(ctx, userID, s.nowFn())
	if err != nil {
		return nil, fmt.Errorf("list device trusts: %w", err)
	}
	items := make([]DeviceItem, 0, len(trusts))
	for _, t := range trusts {
		items = append(items, DeviceItem{
			DeviceTrustID: t.ID.String(),
			Fingerprint:   t.Fingerprint,
			UserAgent:     t.UserAgent,
			IPAddress:     t.IPAddress,
			CreatedAt:     t.CreatedAt,
			LastUsedAt:    t.LastUsedAt,
			ExpiresAt:     t.ExpiresAt,
		})
	}
	return items, nil
}

// RevokeDevice removes one of the caller's device trusts. A trust owned by
// another user yields the same not-found outcome as a missing id, so trust
// ids cannot be probed across accounts.
func (s *Service) RevokeDevice(ctx context.Context, userID, trustID uuid.UUID) error {
	err := s.deviceTrusts.Delete(ctx, userID, trustID, domain.DeviceRevokeReasonUserRevoked, uuid.New())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrDeviceTrustNotFound
		}
		return fmt.Errorf("revoke device trust: %w", err)
	}
	return nil
}

// RevokeAllDevices removes every device trust for the user, forcing MFA on
// all future signins. Returns how many trusts were removed.
func (s *Service) RevokeAllDevices(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.deviceTrusts.DeleteAll(ctx, userID, domain.DeviceRevokeReasonUserRevokedAll, uuid.New())
	if err != nil {
		return 0, fmt.Errorf("revoke device trusts: %w", err)
	}
	return n, nil
}
