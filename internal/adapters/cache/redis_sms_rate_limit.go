package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/viralforge/identity-core/internal/ports"
)

const (
	smsWindowPrefix   = "identity:sms:window:"
	smsCooldownPrefix = "identity:sms:cooldown:"
)

// RedisSMSRateLimitStore tracks the per-user SMS send budget with a fixed
// window counter and a separate cooldown key between consecutive sends.
type RedisSMSRateLimitStore struct {
	client *redis.Client
}

func NewRedisSMSRateLimitStore(client *redis.Client) *RedisSMSRateLimitStore {
	return &RedisSMSRateLimitStore{client: client}
}

func (s *RedisSMSRateLimitStore) Check(ctx context.Context, userID uuid.UUID) (ports.SMSSendState, error) {
	windowKey := smsWindowPrefix + userID.String()
	cooldownKey := smsCooldownPrefix + userID.String()

	state := ports.SMSSendState{}

	raw, err := s.client.Get(ctx, windowKey).Result()
	if err == nil {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			state.SendsInWindow = n
		}
		ttl, ttlErr := s.client.TTL(ctx, windowKey).Result()
		if ttlErr == nil && ttl > 0 {
			state.WindowResetAfter = ttl
		}
	} else if !errors.Is(err, redis.Nil) {
		return ports.SMSSendState{}, err
	}

	cooldownTTL, err := s.client.TTL(ctx, cooldownKey).Result()
	if err != nil {
		return ports.SMSSendState{}, err
	}
	if cooldownTTL > 0 {
		state.CooldownActive = true
		state.CooldownAfter = cooldownTTL
	}
	return state, nil
}

// RecordSend increments the window counter and arms the cooldown in one
// round trip. The window TTL is set only when the counter is created so the
// window is fixed, not sliding.
func (s *RedisSMSRateLimitStore) RecordSend(ctx context.Context, userID uuid.UUID, window, cooldown time.Duration) error {
	windowKey := smsWindowPrefix + userID.String()
	cooldownKey := smsCooldownPrefix + userID.String()

	count, err := s.client.Incr(ctx, windowKey).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, windowKey, window).Err(); err != nil {
			return err
		}
	}
	return s.client.Set(ctx, cooldownKey, "1", cooldown).Err()
}
