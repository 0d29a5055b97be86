package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
	"github.com/viralforge/identity-core/internal/ports"
)

// sessionContext carries the request attributes stamped onto a new session.
type sessionContext struct {
	DeviceID    string
	Fingerprint string
	IPAddress   string
	UserAgent   string
}

// completeSignIn creates the session, enforces the per-user concurrency cap
// by evicting the oldest session, appends the lifecycle events, and signs
// the token pair. The per-user mutex serializes the list-evict-create
// sequence so concurrent signins converge to at most the cap.
func (s *Service) completeSignIn(ctx context.Context, user domain.User, sc sessionContext, correlationID uuid.UUID) (SignInResponse, error) {
	mu := s.sessionLocks.lock(user.UserID)
	defer mu.Unlock()

	now := s.nowFn()

	existing, err := s.sessions.ListByUser(ctx, user.UserID)
	if err != nil {
		return SignInResponse{}, fmt.Errorf("list sessions: %w", err)
	}

	var events []domain.Event
	live := 0
	for _, sess := range existing {
		if !sess.Expired(now) {
			live++
		}
	}
	// ListByUser is ordered oldest-first; evict from the head until the new
	// session fits under the cap.
	for i := 0; i < len(existing) && live >= s.cfg.MaxSessionsPerUser; i++ {
		victim := existing[i]
		if victim.Expired(now) {
			continue
		}
		if err := s.sessions.Delete(ctx, victim.SessionID); err != nil {
			return SignInResponse{}, fmt.Errorf("evict session: %w", err)
		}
		events = append(events, domain.NewEvent(user.UserID, correlationID, now, domain.SessionInvalidatedPayload{
			SessionID:     victim.SessionID,
			UserID:        user.UserID,
			Reason:        domain.SessionInvalidateReasonConcurrentLimit,
			InvalidatedAt: now,
		}))
		live--
	}

	refreshToken := newRefreshToken()
	session := domain.Session{
		SessionID:   newSessionID(),
		UserID:      user.UserID,
		DeviceID:    sc.DeviceID,
		IPAddress:   sc.IPAddress,
		UserAgent:   sc.UserAgent,
		TokenFamily: newTokenFamily(),
		RefreshHash: hashCode(refreshToken),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.SessionTTL),
		TTLSeconds:  int64(s.cfg.SessionTTL.Seconds()),
	}
	if err := s.sessions.Put(ctx, session, s.cfg.SessionTTL); err != nil {
		return SignInResponse{}, fmt.Errorf("store session: %w", err)
	}

	events = append(events, domain.NewEvent(user.UserID, correlationID, now, domain.SessionCreatedPayload{
		SessionID:   session.SessionID,
		UserID:      user.UserID,
		DeviceID:    session.DeviceID,
		IPAddress:   session.IPAddress,
		TokenFamily: session.TokenFamily,
		CreatedAt:   session.CreatedAt,
		ExpiresAt:   session.ExpiresAt,
	}))
	if err := s.events.Append(ctx, events...); err != nil {
		// The session must not outlive its audit trail.
		_ = s.sessions.Delete(ctx, session.SessionID)
		return SignInResponse{}, fmt.Errorf("append session events: %w", err)
	}

	accessToken, err := s.tokenSigner.Sign(ports.AuthClaims{
		UserID:      user.UserID,
		Email:       user.Email,
		SessionID:   session.SessionID,
		TokenFamily: session.TokenFamily,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.cfg.TokenTTL),
	})
	if err != nil {
		_ = s.sessions.Delete(ctx, session.SessionID)
		return SignInResponse{}, fmt.Errorf("sign access token: %w", err)
	}

	return SignInResponse{
		Status:       SignInStatusSuccess,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    session.SessionID,
		ExpiresIn:    int64(s.cfg.TokenTTL.Seconds()),
	}, nil
}

// Logout invalidates the caller's session. Missing or expired sessions are
// treated as already logged out.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, sessionID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.UserID != userID {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	now := s.nowFn()
	return s.events.Append(ctx, domain.NewEvent(userID, uuid.New(), now, domain.SessionInvalidatedPayload{
		SessionID:     sessionID,
		UserID:        userID,
		Reason:        domain.SessionInvalidateReasonLogout,
		InvalidatedAt: now,
	}))
}

// RefreshToken rotates the refresh token within the session's token family.
// Presenting the previous (already rotated) token is treated as theft: the
// whole session is invalidated with TOKEN_FAMILY_COMPROMISED.
func (s *Service) RefreshToken(ctx context.Context, sessionID, refreshToken string) (RefreshResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return RefreshResponse{}, fmt.Errorf("load session: %w", err)
	}
	now := s.nowFn()
	if session == nil || session.Expired(now) {
		return RefreshResponse{}, domain.ErrSessionNotFound
	}

	presented := hashCode(strings.TrimSpace(refreshToken))
	if session.PrevRefreshHash != "" && presented == session.PrevRefreshHash {
		_ = s.sessions.Delete(ctx, session.SessionID)
		_ = s.events.Append(ctx, domain.NewEvent(session.UserID, uuid.New(), now, domain.SessionInvalidatedPayload{
			SessionID:     session.SessionID,
			UserID:        session.UserID,
			Reason:        domain.SessionInvalidateReasonTokenCompromise,
			InvalidatedAt: now,
		}))
		return RefreshResponse{}, domain.ErrUnauthorized
	}
	if presented != session.RefreshHash {
		return RefreshResponse{}, domain.ErrUnauthorized
	}

	next := newRefreshToken()
	rotated := *session
	rotated.PrevRefreshHash = session.RefreshHash
	rotated.RefreshHash = hashCode(next)
	ttl := rotated.ExpiresAt.Sub(now)
	if err := s.sessions.Put(ctx, rotated, ttl); err != nil {
		return RefreshResponse{}, fmt.Errorf("rotate session: %w", err)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return RefreshResponse{}, fmt.Errorf("load user: %w", err)
	}
	accessToken, err := s.tokenSigner.Sign(ports.AuthClaims{
		UserID:      user.UserID,
		Email:       user.Email,
		SessionID:   session.SessionID,
		TokenFamily: session.TokenFamily,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.cfg.TokenTTL),
	})
	if err != nil {
		return RefreshResponse{}, fmt.Errorf("sign access token: %w", err)
	}

	return RefreshResponse{
		AccessToken:  accessToken,
		RefreshToken: next,
		ExpiresIn:    int64(s.cfg.TokenTTL.Seconds()),
	}, nil
}

// ListSessions returns the user's live sessions, oldest first.
func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID, currentSessionID string) ([]SessionItem, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	now := s.nowFn()
	items := make([]SessionItem, 0, len(sessions))
	for _, sess := range sessions {
		if sess.Expired(now) {
			continue
		}
		items = append(items, SessionItem{
			SessionID: sess.SessionID,
			DeviceID:  sess.DeviceID,
			IPAddress: sess.IPAddress,
			UserAgent: sess.UserAgent,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			Current:   sess.SessionID == currentSessionID,
		})
	}
	return items, nil
}

// RevokeSession invalidates one of the caller's sessions by id. Sessions
// belonging to another user are indistinguishable from missing ones.
func (s *Service) RevokeSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.UserID != userID {
		return domain.ErrSessionNotFound
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	now := s.nowFn()
	return s.events.Append(ctx, domain.NewEvent(userID, uuid.New(), now, domain.SessionInvalidatedPayload{
		SessionID:     sessionID,
		UserID:        userID,
		Reason:        domain.SessionInvalidateReasonLogout,
		InvalidatedAt: now,
	}))
}

// ValidateToken checks signature and expiry of an access token and confirms
// its backing session is still live.
func (s *Service) ValidateToken(ctx context.Context, token string) (ports.AuthClaims, error) {
	claims, err := s.tokenSigner.ParseAndValidate(strings.TrimSpace(token))
	if err != nil {
		return ports.AuthClaims{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return ports.AuthClaims{}, fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.Expired(s.nowFn()) || session.UserID != claims.UserID {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	return claims, nil
}
