package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/ports"
)

func TestOutboxWorkerPublishesClaimedRecordsInOrder(t *testing.T) {
	t.Parallel()

	repo := newMemOutbox()
	userKey := uuid.NewString()
	first := repo.add("account.authentication_succeeded", userKey, []byte(`{"n":1}`))
	second := repo.add("session.created", userKey, []byte(`{"n":2}`))

	publisher := NewRecordingPublisher()
	worker := NewOutboxWorker(testLogger(), repo, publisher, time.Second, 10, 30*time.Second, 5)

	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	messages := publisher.ByPartitionKey(userKey)
	if len(messages) != 2 {
		t.Fatalf("expected two published messages, got %d", len(messages))
	}
	if messages[0].EventType != "account.authentication_succeeded" || messages[1].EventType != "session.created" {
		t.Fatalf("expected creation-order publication, got %v", messages)
	}
	if !repo.isPublished(first) || !repo.isPublished(second) {
		t.Fatalf("expected both records marked published")
	}

	// A second pass finds nothing to claim.
	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if len(publisher.Messages()) != 2 {
		t.Fatalf("published records must not be re-delivered")
	}
}

func TestOutboxWorkerRetriesThenDeadLetters(t *testing.T) {
	t.Parallel()

	repo := newMemOutbox()
	id := repo.add("account.locked", uuid.NewString(), []byte(`{}`))

	publisher := &failingPublisher{err: errors.New("broker unavailable")}
	worker := NewOutboxWorker(testLogger(), repo, publisher, time.Second, 10, 30*time.Second, 3)

	for i := 0; i < 3; i++ {
		if err := worker.processOnce(context.Background()); err != nil {
			t.Fatalf("pass %d failed: %v", i, err)
		}
	}

	rec := repo.get(id)
	if rec.DeadLetteredAt == nil {
		t.Fatalf("expected dead letter after exhausting retries, got %+v", rec)
	}
	if rec.PublishedAt != nil {
		t.Fatalf("dead-lettered record must not be marked published")
	}
	if rec.LastError == nil || *rec.LastError == "" {
		t.Fatalf("expected last error recorded")
	}

	// Dead-lettered records are never claimed again.
	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("post-dlq pass failed: %v", err)
	}
	if publisher.calls() != 3 {
		t.Fatalf("expected no further publish attempts, got %d", publisher.calls())
	}
}

func TestOutboxWorkerRecoversFromTransientFailure(t *testing.T) {
	t.Parallel()

	repo := newMemOutbox()
	id := repo.add("mfa.challenge_initiated", uuid.NewString(), []byte(`{}`))

	publisher := &failingPublisher{err: errors.New("timeout"), failFirst: 1}
	worker := NewOutboxWorker(testLogger(), repo, publisher, time.Second, 10, 30*time.Second, 5)

	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if repo.get(id).PublishedAt != nil {
		t.Fatalf("record must stay unpublished after transient failure")
	}
	if err := worker.processOnce(context.Background()); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if repo.get(id).PublishedAt == nil {
		t.Fatalf("expected publish after broker recovery")
	}
}

func TestOutboxWorkerRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := NewOutboxWorker(testLogger(), newMemOutbox(), NewRecordingPublisher(), 10*time.Millisecond, 10, time.Second, 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop on cancellation")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memOutbox struct {
	mu      sync.Mutex
	order   []uuid.UUID
	records map[uuid.UUID]*ports.OutboxRecord
}

func newMemOutbox() *memOutbox {
	return &memOutbox{records: map[uuid.UUID]*ports.OutboxRecord{}}
}

func (m *memOutbox) add(eventType, partitionKey string, payload []byte) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.records[id] = &ports.OutboxRecord{
		OutboxID:     id,
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      payload,
		CreatedAt:    time.Now().UTC().Add(time.Duration(len(m.order)) * time.Millisecond),
	}
	m.order = append(m.order, id)
	return id
}

func (m *memOutbox) get(id uuid.UUID) ports.OutboxRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.records[id]
}

func (m *memOutbox) isPublished(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id].PublishedAt != nil
}

func (m *memOutbox) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []ports.OutboxRecord
	for _, id := range m.order {
		if len(out) >= limit {
			break
		}
		rec := m.records[id]
		if rec.PublishedAt != nil || rec.DeadLetteredAt != nil {
			continue
		}
		if rec.ClaimUntil != nil && rec.ClaimUntil.After(now) && (rec.ClaimToken == nil || *rec.ClaimToken != claimToken) {
			continue
		}
		token := claimToken
		until := claimUntil
		rec.ClaimToken = &token
		rec.ClaimUntil = &until
		out = append(out, *rec)
	}
	return out, nil
}

func (m *memOutbox) MarkPublished(_ context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return errors.New("claim mismatch")
	}
	rec.PublishedAt = &at
	rec.ClaimToken = nil
	rec.ClaimUntil = nil
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return errors.New("claim mismatch")
	}
	rec.RetryCount++
	rec.LastError = &errMsg
	rec.LastErrorAt = &at
	rec.ClaimToken = nil
	rec.ClaimUntil = nil
	return nil
}

func (m *memOutbox) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return errors.New("claim mismatch")
	}
	rec.DeadLetteredAt = &at
	rec.LastError = &errMsg
	rec.LastErrorAt = &at
	rec.ClaimToken = nil
	rec.ClaimUntil = nil
	return nil
}

type failingPublisher struct {
	mu        sync.Mutex
	err       error
	failFirst int
	n         int
}

func (p *failingPublisher) Publish(context.Context, string, []byte, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	if p.failFirst > 0 && p.n > p.failFirst {
		return nil
	}
	return p.err
}

func (p *failingPublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}
