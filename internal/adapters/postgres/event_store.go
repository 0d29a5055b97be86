package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
	"gorm.io/gorm"
)

type eventStore struct {
	db *gorm.DB
}

// Append writes the events to the append-only log and enqueues each one in
// the outbox within a single transaction, so a stored event is always
// scheduled for publication.
func (s *eventStore) Append(ctx context.Context, events ...domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendEventsTx(tx, events)
	})
}

// appendEventsTx inserts event-store rows plus their outbox rows inside the
// caller's transaction. Shared by every repository that persists state and
// events atomically.
func appendEventsTx(tx *gorm.DB, events []domain.Event) error {
	for _, ev := range events {
		rec := toDomainEventModel(ev)
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		outbox := identityOutboxModel{
			OutboxID:     ev.EventID,
			EventType:    ev.EventType,
			PartitionKey: ev.AggregateID.String(),
			Payload:      string(ev.Payload),
			CreatedAt:    ev.OccurredAt,
		}
		if err := tx.Create(&outbox).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *eventStore) FindByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]domain.Event, error) {
	var rows []domainEventModel
	if err := s.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("occurred_at ASC, event_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainEvent(row))
	}
	return result, nil
}

func (s *eventStore) FindByEventTypeAndAggregateID(ctx context.Context, eventType string, aggregateID uuid.UUID) ([]domain.Event, error) {
	var rows []domainEventModel
	if err := s.db.WithContext(ctx).
		Where("event_type = ?", eventType).
		Where("aggregate_id = ?", aggregateID).
		Order("occurred_at ASC, event_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainEvent(row))
	}
	return result, nil
}
