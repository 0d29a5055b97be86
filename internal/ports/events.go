package ports

import "context"

// EventPublisher is the outbound domain-event publish port. The partition
// key is the aggregate id so per-aggregate ordering survives the broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
