package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/viralforge/identity-core/internal/domain"
)

const (
	sessionKeyPrefix    = "identity:session:"
	userSessionsPrefix  = "identity:user-sessions:"
	userSessionsPadding = time.Hour
)

// RedisSessionStore keeps live sessions as JSON values with a native TTL
// backstop, plus a per-user sorted set scored by creation time so the
// oldest-first listing needed for cap eviction is one ZRANGE away.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Put(ctx context.Context, session domain.Session, ttl time.Duration) error {
	raw, err := json.Marshal(sessionRecord{
		SessionID:       session.SessionID,
		UserID:          session.UserID,
		DeviceID:        session.DeviceID,
		IPAddress:       session.IPAddress,
		UserAgent:       session.UserAgent,
		TokenFamily:     session.TokenFamily,
		RefreshHash:     session.RefreshHash,
		PrevRefreshHash: session.PrevRefreshHash,
		CreatedAt:       session.CreatedAt,
		ExpiresAt:       session.ExpiresAt,
		TTLSeconds:      session.TTLSeconds,
	})
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKeyPrefix+session.SessionID, raw, ttl)
		p.ZAdd(ctx, userSessionsPrefix+session.UserID.String(), redis.Z{
			Score:  float64(session.CreatedAt.UnixNano()),
			Member: session.SessionID,
		})
		// The index outlives the longest session slightly so stale members
		// are pruned on read instead of leaking forever.
		p.Expire(ctx, userSessionsPrefix+session.UserID.String(), ttl+userSessionsPadding)
		return nil
	})
	return err
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	out := rec.toDomain()
	return &out, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKeyPrefix+sessionID)
		if session != nil {
			p.ZRem(ctx, userSessionsPrefix+session.UserID.String(), sessionID)
		}
		return nil
	})
	return err
}

// ListByUser returns the user's sessions oldest-first. Members whose value
// key has already expired are dropped from the index as a side effect.
func (s *RedisSessionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Session, error) {
	indexKey := userSessionsPrefix + userID.String()
	ids, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		session, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if session == nil {
			_ = s.client.ZRem(ctx, indexKey, id).Err()
			continue
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

func (s *RedisSessionStore) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	sessions, err := s.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

type sessionRecord struct {
	SessionID       string    `json:"session_id"`
	UserID          uuid.UUID `json:"user_id"`
	DeviceID        string    `json:"device_id,omitempty"`
	IPAddress       string    `json:"ip_address,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
	TokenFamily     string    `json:"token_family"`
	RefreshHash     string    `json:"refresh_hash"`
	PrevRefreshHash string    `json:"prev_refresh_hash,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	TTLSeconds      int64     `json:"ttl_seconds"`
}

func (r sessionRecord) toDomain() domain.Session {
	return domain.Session{
		SessionID:       r.SessionID,
		UserID:          r.UserID,
		DeviceID:        r.DeviceID,
		IPAddress:       r.IPAddress,
		UserAgent:       r.UserAgent,
		TokenFamily:     r.TokenFamily,
		RefreshHash:     r.RefreshHash,
		PrevRefreshHash: r.PrevRefreshHash,
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
		TTLSeconds:      r.TTLSeconds,
	}
}
