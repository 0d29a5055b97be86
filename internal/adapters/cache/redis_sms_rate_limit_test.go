package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSMSRateLimitWindowAndCooldown(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	store := NewRedisSMSRateLimitStore(client)
	ctx := context.Background()
	userID := uuid.New()

	state, err := store.Check(ctx, userID)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if state.SendsInWindow != 0 || state.CooldownActive {
		t.Fatalf("expected clean initial state, got %+v", state)
	}

	if err := store.RecordSend(ctx, userID, time.Hour, time.Minute); err != nil {
		t.Fatalf("record send failed: %v", err)
	}
	state, err = store.Check(ctx, userID)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if state.SendsInWindow != 1 {
		t.Fatalf("expected one send in window, got %d", state.SendsInWindow)
	}
	if !state.CooldownActive || state.CooldownAfter <= 0 {
		t.Fatalf("expected active cooldown, got %+v", state)
	}
	if state.WindowResetAfter <= 0 || state.WindowResetAfter > time.Hour {
		t.Fatalf("expected window reset hint, got %v", state.WindowResetAfter)
	}

	// Cooldown clears independently of the window counter.
	mr.FastForward(2 * time.Minute)
	state, err = store.Check(ctx, userID)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if state.CooldownActive {
		t.Fatalf("expected cooldown to clear")
	}
	if state.SendsInWindow != 1 {
		t.Fatalf("window counter must survive the cooldown, got %d", state.SendsInWindow)
	}

	if err := store.RecordSend(ctx, userID, time.Hour, time.Minute); err != nil {
		t.Fatalf("second send failed: %v", err)
	}
	if state, _ := store.Check(ctx, userID); state.SendsInWindow != 2 {
		t.Fatalf("expected two sends in window, got %d", state.SendsInWindow)
	}
}

func TestSMSRateLimitWindowIsFixedNotSliding(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	store := NewRedisSMSRateLimitStore(client)
	ctx := context.Background()
	userID := uuid.New()

	if err := store.RecordSend(ctx, userID, time.Minute, time.Second); err != nil {
		t.Fatalf("record send failed: %v", err)
	}
	mr.FastForward(30 * time.Second)
	// A second send must not extend the original window.
	if err := store.RecordSend(ctx, userID, time.Minute, time.Second); err != nil {
		t.Fatalf("second send failed: %v", err)
	}
	mr.FastForward(31 * time.Second)

	state, err := store.Check(ctx, userID)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if state.SendsInWindow != 0 {
		t.Fatalf("expected counter to reset at the original window edge, got %d", state.SendsInWindow)
	}
}

func TestSMSRateLimitIsolatedPerUser(t *testing.T) {
	t.Parallel()

	_, client := newTestRedis(t)
	store := NewRedisSMSRateLimitStore(client)
	ctx := context.Background()

	userA := uuid.New()
	userB := uuid.New()
	if err := store.RecordSend(ctx, userA, time.Hour, time.Minute); err != nil {
		t.Fatalf("record send failed: %v", err)
	}

	state, err := store.Check(ctx, userB)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if state.SendsInWindow != 0 || state.CooldownActive {
		t.Fatalf("budget must be per user, got %+v", state)
	}
}
