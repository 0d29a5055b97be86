package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
)

func TestChallengeStorePutGetDelete(t *testing.T) {
	t.Parallel()

	_, client := newTestRedis(t)
	store := NewRedisMFAChallengeStore(client)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	challenge := domain.MfaChallenge{
		Token:             "mfa_abc",
		UserID:            uuid.New(),
		Email:             "user@example.com",
		Method:            domain.MFAMethodSMS,
		SMSCodeHash:       "deadbeef",
		CreatedAt:         now,
		ExpiresAt:         now.Add(5 * time.Minute),
		RemainingAttempts: 3,
		CorrelationID:     uuid.New(),
	}

	if err := store.Put(ctx, challenge, 5*time.Minute); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := store.Get(ctx, "mfa_abc")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.UserID != challenge.UserID || got.SMSCodeHash != challenge.SMSCodeHash {
		t.Fatalf("challenge changed in transit: %+v", got)
	}
	if got.RemainingAttempts != 3 {
		t.Fatalf("expected attempt budget to persist, got %d", got.RemainingAttempts)
	}

	if err := store.Delete(ctx, "mfa_abc"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got, err := store.Get(ctx, "mfa_abc"); err != nil || got != nil {
		t.Fatalf("expected nil after delete, got %v %v", got, err)
	}
}

func TestChallengeStoreExpiry(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	store := NewRedisMFAChallengeStore(client)
	ctx := context.Background()

	challenge := domain.MfaChallenge{Token: "mfa_ttl", UserID: uuid.New()}
	if err := store.Put(ctx, challenge, time.Second); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if got, err := store.Get(ctx, "mfa_ttl"); err != nil || got != nil {
		t.Fatalf("expected challenge to expire, got %v %v", got, err)
	}
}

func TestConsumedCodeLedger(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	store := NewRedisMFAChallengeStore(client)
	ctx := context.Background()

	userID := uuid.New()
	otherUser := uuid.New()
	const codeHash = "cafef00d"

	consumed, err := store.IsCodeConsumed(ctx, userID, codeHash)
	if err != nil || consumed {
		t.Fatalf("fresh code must not be consumed, got %v %v", consumed, err)
	}

	if err := store.MarkCodeConsumed(ctx, userID, codeHash, 90*time.Second); err != nil {
		t.Fatalf("mark consumed failed: %v", err)
	}
	if consumed, _ := store.IsCodeConsumed(ctx, userID, codeHash); !consumed {
		t.Fatalf("expected code marked consumed")
	}
	// The ledger is per user; the same code stays fresh for someone else.
	if consumed, _ := store.IsCodeConsumed(ctx, otherUser, codeHash); consumed {
		t.Fatalf("ledger must not leak across users")
	}

	mr.FastForward(2 * time.Minute)
	if consumed, _ := store.IsCodeConsumed(ctx, userID, codeHash); consumed {
		t.Fatalf("ledger entry must expire with the replay window")
	}
}
