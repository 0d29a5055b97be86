package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
)

// SignIn runs one credential authentication attempt through the fixed
// orchestration order: resolve an expired lock, verify the password
// (always, even for unknown users), evaluate account status, then decide
// between device-trust bypass, MFA challenge, and immediate success. Every
// state transition is appended to the event store before the response.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (SignInResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return SignInResponse{}, err
	}
	correlationID := uuid.New()
	now := s.nowFn()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return SignInResponse{}, fmt.Errorf("lookup user: %w", err)
		}
		// Burn the same argon2 work as the wrong-password path so response
		// latency does not reveal whether the account exists.
		_ = s.hasher.Compare(s.hasher.DummyHash(), req.Password)
		return SignInResponse{}, &domain.InvalidCredentialsError{RemainingAttempts: 0}
	}

	if user.LockActive(now) {
		return SignInResponse{}, lockedError(user, now)
	}
	if user.LockExpired(now) {
		user, err = s.users.UpdateWithEvents(ctx, user.UserID, func(u domain.User) (domain.User, []domain.Event, error) {
			next, ev, ok := domain.ResolveExpiredLock(u, now, correlationID)
			if !ok {
				return u, nil, nil
			}
			return next, []domain.Event{ev}, nil
		})
		if err != nil {
			return SignInResponse{}, fmt.Errorf("resolve expired lock: %w", err)
		}
	}

	if compareErr := s.hasher.Compare(user.PasswordHash, req.Password); compareErr != nil {
		if !user.CanAuthenticate() {
			// Inactive accounts never accrue lockout state. The response
			// matches the unknown-account shape so the status is not
			// disclosed without a valid password.
			return SignInResponse{}, &domain.InvalidCredentialsError{RemainingAttempts: 0}
		}
		return SignInResponse{}, s.recordFailedAttempt(ctx, user.UserID, req.IPAddress, correlationID)
	}

	if user.Status != domain.StatusActive {
		return SignInResponse{}, &domain.AccountInactiveError{
			Status: user.Status,
			Reason: domain.InactiveReason(user.Status),
		}
	}

	user, err = s.users.UpdateWithEvents(ctx, user.UserID, func(u domain.User) (domain.User, []domain.Event, error) {
		if u.LockActive(now) {
			// A concurrent attempt locked the account between our read and
			// this transaction; honor the lock.
			return u, nil, lockedError(u, now)
		}
		next, ev := domain.RecordSuccessfulAuth(u, now, req.DeviceFingerprint, req.IPAddress, correlationID)
		return next, []domain.Event{ev}, nil
	})
	if err != nil {
		var lockedErr *domain.AccountLockedError
		if errors.As(err, &lockedErr) {
			return SignInResponse{}, err
		}
		return SignInResponse{}, fmt.Errorf("record successful auth: %w", err)
	}

	if user.MFAEnabled {
		if trust := s.matchDeviceTrust(ctx, user, req.DeviceFingerprint, req.UserAgent); trust != nil {
			_ = s.deviceTrusts.TouchLastUsed(ctx, trust.ID, now)
			return s.completeSignIn(ctx, user, sessionContext{
				DeviceID:    req.DeviceID,
				Fingerprint: req.DeviceFingerprint,
				IPAddress:   req.IPAddress,
				UserAgent:   req.UserAgent,
			}, correlationID)
		}
		return s.issueChallenge(ctx, user, correlationID)
	}

	return s.completeSignIn(ctx, user, sessionContext{
		DeviceID:    req.DeviceID,
		Fingerprint: req.DeviceFingerprint,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
	}, correlationID)
}

// recordFailedAttempt persists the counter increment and lockout transition
// under the user row lock, then maps the outcome to the caller-facing error.
// An infrastructure failure rolls the transaction back and surfaces as an
// internal error so the counter is never corrupted by flaky storage.
func (s *Service) recordFailedAttempt(ctx context.Context, userID uuid.UUID, ip string, correlationID uuid.UUID) error {
	now := s.nowFn()
	var result domain.FailedAttemptResult
	_, err := s.users.UpdateWithEvents(ctx, userID, func(u domain.User) (domain.User, []domain.Event, error) {
		if u.LockActive(now) {
			return u, nil, lockedError(u, now)
		}
		result = domain.RecordFailedAttempt(u, now, s.cfg.MaxFailedAttempts, s.cfg.LockoutDuration, ip, correlationID)
		return result.User, result.Events, nil
	})
	if err != nil {
		var lockedErr *domain.AccountLockedError
		if errors.As(err, &lockedErr) {
			return err
		}
		return fmt.Errorf("record failed attempt: %w", err)
	}
	if result.Locked {
		return &domain.AccountLockedError{
			LockedUntil:      result.LockedUntil,
			RemainingSeconds: int(result.LockedUntil.Sub(now).Seconds()),
		}
	}
	return &domain.InvalidCredentialsError{RemainingAttempts: result.RemainingAttempts}
}

// matchDeviceTrust returns the first unexpired trust whose fingerprint and
// user agent both match the request exactly. Any valid match bypasses MFA;
// all candidates belong to the same user.
func (s *Service) matchDeviceTrust(ctx context.Context, user domain.User, fingerprint, userAgent string) *domain.DeviceTrust {
	if fingerprint == "" {
		return nil
	}
	now := s.nowFn()
	trusts, err := s.deviceTrusts.ListActive(ctx, user.UserID, now)
	if err != nil {
		return nil
	}
	for i := range trusts {
		if trusts[i].Usable(fingerprint, userAgent, now) {
			return &trusts[i]
		}
	}
	return nil
}

func lockedError(u domain.User, now time.Time) *domain.AccountLockedError {
	until := now
	if u.LockedUntil != nil {
		until = *u.LockedUntil
	}
	remaining := int(until.Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &domain.AccountLockedError{LockedUntil: until, RemainingSeconds: remaining}
}
