package application

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
)

// issueChallenge creates a short-lived MFA challenge after password success
// and returns MFA_REQUIRED instead of completing the session. SMS challenges
// additionally consume the per-user send budget.
func (s *Service) issueChallenge(ctx context.Context, user domain.User, correlationID uuid.UUID) (SignInResponse, error) {
	settings, err := s.mfaSettings.GetSettings(ctx, user.UserID)
	if err != nil {
		return SignInResponse{}, fmt.Errorf("load mfa settings: %w", err)
	}
	method := pickMethod(settings)
	if method == "" {
		return SignInResponse{}, fmt.Errorf("%w: no mfa method enrolled", domain.ErrInvalidInput)
	}

	now := s.nowFn()
	challenge := domain.MfaChallenge{
		Token:             newChallengeToken(),
		UserID:            user.UserID,
		Email:             user.Email,
		Method:            method,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.cfg.ChallengeTTL),
		RemainingAttempts: s.cfg.ChallengeMaxAttempts,
		CorrelationID:     correlationID,
	}

	if method == domain.MFAMethodSMS {
		code, sendErr := s.sendSMSCode(ctx, user.UserID, settings.PhoneNumber)
		if sendErr != nil {
			return SignInResponse{}, sendErr
		}
		challenge.SMSCodeHash = hashCode(code)
	}

	if err := s.challenges.Put(ctx, challenge, s.cfg.ChallengeTTL); err != nil {
		return SignInResponse{}, fmt.Errorf("store mfa challenge: %w", err)
	}

	if err := s.events.Append(ctx, domain.NewEvent(user.UserID, correlationID, now, domain.MFAChallengeInitiatedPayload{
		UserID:      user.UserID,
		Method:      method,
		InitiatedAt: now,
		ExpiresAt:   challenge.ExpiresAt,
	})); err != nil {
		_ = s.challenges.Delete(ctx, challenge.Token)
		return SignInResponse{}, fmt.Errorf("append challenge event: %w", err)
	}

	return SignInResponse{
		Status:         SignInStatusMFARequired,
		ChallengeToken: challenge.Token,
		Methods:        settings.Methods,
	}, nil
}

// VerifyMFA completes a pending challenge. A wrong code burns one attempt;
// exhausting the budget invalidates the challenge outright. An already
// consumed code is rejected and also burns an attempt.
func (s *Service) VerifyMFA(ctx context.Context, req MFAVerifyRequest) (SignInResponse, error) {
	token := strings.TrimSpace(req.ChallengeToken)
	if token == "" || strings.TrimSpace(req.Code) == "" {
		return SignInResponse{}, fmt.Errorf("%w: challenge token and code are required", domain.ErrInvalidInput)
	}

	challenge, err := s.challenges.Get(ctx, token)
	if err != nil {
		return SignInResponse{}, fmt.Errorf("load mfa challenge: %w", err)
	}
	if challenge == nil {
		return SignInResponse{}, domain.ErrMFAInvalidToken
	}

	now := s.nowFn()
	if challenge.Expired(now) {
		_ = s.challenges.Delete(ctx, token)
		return SignInResponse{}, domain.ErrMFAExpired
	}
	if req.Method != "" && !strings.EqualFold(req.Method, challenge.Method) {
		return SignInResponse{}, domain.ErrMFAInvalidToken
	}

	codeHash := hashCode(req.Code)
	consumed, err := s.challenges.IsCodeConsumed(ctx, challenge.UserID, codeHash)
	if err != nil {
		return SignInResponse{}, fmt.Errorf("check code replay: %w", err)
	}
	if consumed {
		if _, burnErr := s.burnAttempt(ctx, challenge, now); burnErr != nil {
			return SignInResponse{}, burnErr
		}
		return SignInResponse{}, domain.ErrMFACodeAlreadyUsed
	}

	valid, err := s.codeMatches(ctx, challenge, req.Code, codeHash)
	if err != nil {
		return SignInResponse{}, err
	}
	if !valid {
		remaining, burnErr := s.burnAttempt(ctx, challenge, now)
		if burnErr != nil {
			return SignInResponse{}, burnErr
		}
		return SignInResponse{}, &domain.MFAInvalidCodeError{RemainingAttempts: remaining}
	}

	// The ledger write must land before the sign-in completes; skipping it on
	// failure would quietly drop replay protection for this code. The
	// challenge survives so the caller can retry once the store recovers.
	if err := s.challenges.MarkCodeConsumed(ctx, challenge.UserID, codeHash, s.cfg.CodeReplayTTL); err != nil {
		return SignInResponse{}, fmt.Errorf("record code consumption: %w", err)
	}
	_ = s.challenges.Delete(ctx, token)

	if err := s.events.Append(ctx, domain.NewEvent(challenge.UserID, challenge.CorrelationID, now, domain.MFAVerificationSucceededPayload{
		UserID:     challenge.UserID,
		Method:     challenge.Method,
		VerifiedAt: now,
	})); err != nil {
		return SignInResponse{}, fmt.Errorf("append verification event: %w", err)
	}

	user, err := s.users.GetByID(ctx, challenge.UserID)
	if err != nil {
		return SignInResponse{}, fmt.Errorf("load user: %w", err)
	}

	if req.RememberDevice && req.DeviceFingerprint != "" {
		if err := s.rememberDevice(ctx, user.UserID, req, challenge.CorrelationID); err != nil {
			return SignInResponse{}, err
		}
	}

	return s.completeSignIn(ctx, user, sessionContext{
		DeviceID:    req.DeviceID,
		Fingerprint: req.DeviceFingerprint,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
	}, challenge.CorrelationID)
}

// ResendSMSCode issues a fresh code for a pending SMS challenge, subject to
// the send budget and resend cooldown.
func (s *Service) ResendSMSCode(ctx context.Context, challengeToken string) error {
	challenge, err := s.challenges.Get(ctx, strings.TrimSpace(challengeToken))
	if err != nil {
		return fmt.Errorf("load mfa challenge: %w", err)
	}
	if challenge == nil {
		return domain.ErrMFAInvalidToken
	}
	now := s.nowFn()
	if challenge.Expired(now) {
		_ = s.challenges.Delete(ctx, challenge.Token)
		return domain.ErrMFAExpired
	}
	if challenge.Method != domain.MFAMethodSMS {
		return fmt.Errorf("%w: challenge is not sms", domain.ErrInvalidInput)
	}

	settings, err := s.mfaSettings.GetSettings(ctx, challenge.UserID)
	if err != nil {
		return fmt.Errorf("load mfa settings: %w", err)
	}
	code, err := s.sendSMSCode(ctx, challenge.UserID, settings.PhoneNumber)
	if err != nil {
		return err
	}

	challenge.SMSCodeHash = hashCode(code)
	ttl := challenge.ExpiresAt.Sub(now)
	return s.challenges.Put(ctx, *challenge, ttl)
}

// sendSMSCode checks cooldown and window budget, delivers a fresh code, and
// records the send. Rate-limit outcomes carry a retry-after hint.
func (s *Service) sendSMSCode(ctx context.Context, userID uuid.UUID, phoneNumber string) (string, error) {
	if s.sms == nil {
		return "", domain.ErrSMSNotConfigured
	}
	if strings.TrimSpace(phoneNumber) == "" {
		return "", domain.ErrSMSNotConfigured
	}

	state, err := s.smsLimits.Check(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("check sms budget: %w", err)
	}
	if state.CooldownActive {
		return "", &domain.RetryAfterError{
			Kind:              domain.ErrSMSCooldownActive,
			RetryAfterSeconds: ceilSeconds(state.CooldownAfter),
		}
	}
	if state.SendsInWindow >= s.cfg.SMSMaxSendsPerWindow {
		return "", &domain.RetryAfterError{
			Kind:              domain.ErrSMSRateLimited,
			RetryAfterSeconds: ceilSeconds(state.WindowResetAfter),
		}
	}

	code := randomDigits(6)
	if err := s.sms.Send(ctx, phoneNumber, code); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSMSSendFailed, err)
	}
	if err := s.smsLimits.RecordSend(ctx, userID, s.cfg.SMSSendWindow, s.cfg.SMSResendCooldown); err != nil {
		return "", fmt.Errorf("record sms send: %w", err)
	}
	return code, nil
}

// burnAttempt decrements the challenge's attempt budget, invalidating it
// when the budget is exhausted. Returns attempts remaining.
func (s *Service) burnAttempt(ctx context.Context, challenge *domain.MfaChallenge, now time.Time) (int, error) {
	challenge.RemainingAttempts--
	if challenge.RemainingAttempts <= 0 {
		if err := s.challenges.Delete(ctx, challenge.Token); err != nil {
			return 0, fmt.Errorf("invalidate mfa challenge: %w", err)
		}
		return 0, nil
	}
	ttl := challenge.ExpiresAt.Sub(now)
	if err := s.challenges.Put(ctx, *challenge, ttl); err != nil {
		return 0, fmt.Errorf("update mfa challenge: %w", err)
	}
	return challenge.RemainingAttempts, nil
}

func (s *Service) codeMatches(ctx context.Context, challenge *domain.MfaChallenge, code, codeHash string) (bool, error) {
	switch challenge.Method {
	case domain.MFAMethodTOTP:
		settings, err := s.mfaSettings.GetSettings(ctx, challenge.UserID)
		if err != nil {
			return false, fmt.Errorf("load mfa settings: %w", err)
		}
		if settings.TOTPSecret == "" {
			return false, nil
		}
		return s.totp.Verify(settings.TOTPSecret, strings.TrimSpace(code), s.nowFn()), nil
	case domain.MFAMethodSMS, domain.MFAMethodEmail:
		if challenge.SMSCodeHash == "" {
			return false, nil
		}
		return subtle.ConstantTimeCompare([]byte(challenge.SMSCodeHash), []byte(codeHash)) == 1, nil
	default:
		return false, nil
	}
}

// rememberDevice records a device trust after MFA success. The repository
// enforces the per-user cap and appends both trust events transactionally.
func (s *Service) rememberDevice(ctx context.Context, userID uuid.UUID, req MFAVerifyRequest, correlationID uuid.UUID) error {
	now := s.nowFn()
	trust := domain.DeviceTrust{
		ID:          uuid.New(),
		UserID:      userID,
		Fingerprint: req.DeviceFingerprint,
		UserAgent:   req.UserAgent,
		IPAddress:   req.IPAddress,
		CreatedAt:   now,
		LastUsedAt:  now,
		ExpiresAt:   now.Add(s.cfg.DeviceTrustTTL),
	}
	if _, err := s.deviceTrusts.Create(ctx, trust, s.cfg.MaxDeviceTrusts, correlationID); err != nil {
		return fmt.Errorf("remember device: %w", err)
	}
	return nil
}

func pickMethod(settings domain.MFASettings) string {
	for _, m := range settings.Methods {
		switch strings.ToUpper(strings.TrimSpace(m)) {
		case domain.MFAMethodTOTP:
			if settings.TOTPSecret != "" {
				return domain.MFAMethodTOTP
			}
		case domain.MFAMethodSMS:
			if settings.PhoneNumber != "" {
				return domain.MFAMethodSMS
			}
		case domain.MFAMethodEmail:
			return domain.MFAMethodEmail
		}
	}
	if settings.TOTPSecret != "" {
		return domain.MFAMethodTOTP
	}
	if settings.PhoneNumber != "" {
		return domain.MFAMethodSMS
	}
	return ""
}

func ceilSeconds(d time.Duration) int {
	secs := int(d.Seconds())
	if time.Duration(secs)*time.Second < d {
		secs++
	}
	if secs < 0 {
		return 0
	}
	return secs
}
