package events

import (
	"context"
	"sync"
)

// PublishedMessage is one captured publish call.
type PublishedMessage struct {
	EventType    string
	Payload      []byte
	PartitionKey string
}

// RecordingPublisher captures publishes in memory for tests and local
// verification. Messages are queryable by event type and partition key.
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
}

func NewRecordingPublisher() *RecordingPublisher { return &RecordingPublisher{} }

func (p *RecordingPublisher) Publish(_ context.Context, eventType string, payload []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{
		EventType:    eventType,
		Payload:      append([]byte(nil), payload...),
		PartitionKey: partitionKey,
	})
	return nil
}

// Messages returns a copy of everything published so far, in order.
func (p *RecordingPublisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// ByType returns captured messages matching the event type, in publish order.
func (p *RecordingPublisher) ByType(eventType string) []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedMessage
	for _, m := range p.messages {
		if m.EventType == eventType {
			out = append(out, m)
		}
	}
	return out
}

// ByPartitionKey returns captured messages for one aggregate, in publish order.
func (p *RecordingPublisher) ByPartitionKey(key string) []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedMessage
	for _, m := range p.messages {
		if m.PartitionKey == key {
			out = append(out, m)
		}
	}
	return out
}
