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
	mfaChallengePrefix = "identity:mfa:challenge:"
	mfaConsumedPrefix  = "identity:mfa:consumed:"
)

// RedisMFAChallengeStore stores pending MFA challenges plus the per-user
// consumed-code ledger. The ledger is keyed by user rather than challenge
// because a TOTP code stays valid across challenges within its time step.
type RedisMFAChallengeStore struct {
	client *redis.Client
}

func NewRedisMFAChallengeStore(client *redis.Client) *RedisMFAChallengeStore {
	return &RedisMFAChallengeStore{client: client}
}

func (s *RedisMFAChallengeStore) Put(ctx context.Context, challenge domain.MfaChallenge, ttl time.Duration) error {
	raw, err := json.Marshal(challenge)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, mfaChallengePrefix+challenge.Token, raw, ttl).Err()
}

func (s *RedisMFAChallengeStore) Get(ctx context.Context, token string) (*domain.MfaChallenge, error) {
	raw, err := s.client.Get(ctx, mfaChallengePrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out domain.MfaChallenge
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RedisMFAChallengeStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, mfaChallengePrefix+token).Err()
}

func (s *RedisMFAChallengeStore) MarkCodeConsumed(ctx context.Context, userID uuid.UUID, codeHash string, ttl time.Duration) error {
	return s.client.Set(ctx, mfaConsumedPrefix+userID.String()+":"+codeHash, "1", ttl).Err()
}

func (s *RedisMFAChallengeStore) IsCodeConsumed(ctx context.Context, userID uuid.UUID, codeHash string) (bool, error) {
	n, err := s.client.Exists(ctx, mfaConsumedPrefix+userID.String()+":"+codeHash).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
