package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rohianon/chatcommerce/pkg/logger"
)

// Event is the envelope for every message published to Kafka.
//
// Topic naming: chatcommerce.<domain>.<action>
// Event types carry a version suffix, e.g. "transaction.completed.v1".
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	OccurredAt    time.Time         `json:"occurred_at"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Source        string            `json:"source"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent builds an envelope with a fresh ID and timestamp. The payload is
// marshalled eagerly so publish never fails on encoding.
func NewEvent(eventType, source string, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return &Event{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Source:     source,
		Payload:    raw,
		Metadata:   make(map[string]string),
	}, nil
}

func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Decode unmarshals the payload into dst.
func (e *Event) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// =============================================================================
// Topic Registry
// =============================================================================

const (
	// Published by: bot-service when a purchase or funding settles.
	// Payload: TransactionPayload
	TopicTransactionCompleted = "chatcommerce.transactions.completed"

	// Published by: bot-service when a purchase fails; Refunded is true when
	// the wallet debit was reversed.
	// Payload: TransactionPayload
	TopicTransactionFailed = "chatcommerce.transactions.failed"

	// Published by: bot-service when a gift card enters manual review.
	// Payload: GiftCardPayload
	TopicGiftCardSubmitted = "chatcommerce.giftcards.submitted"

	// Published by: bot-service on admin approve/reject.
	// Payload: GiftCardPayload
	TopicGiftCardReviewed = "chatcommerce.giftcards.reviewed"

	// Published by: bot-service when a checkout link is issued.
	// Payload: PaymentPayload
	TopicPaymentInitiated = "chatcommerce.payments.initiated"

	// Published by: payment reconciliation jobs or gateways bridges.
	// Consumed by: bot-service, which completes the funding transaction.
	// Payload: PaymentPayload
	TopicPaymentConfirmed = "chatcommerce.payments.confirmed"
)

var AllTopics = []string{
	TopicTransactionCompleted,
	TopicTransactionFailed,
	TopicGiftCardSubmitted,
	TopicGiftCardReviewed,
	TopicPaymentInitiated,
	TopicPaymentConfirmed,
}

const (
	EventTypeTransactionCompleted = "transaction.completed.v1"
	EventTypeTransactionFailed    = "transaction.failed.v1"
	EventTypeGiftCardSubmitted    = "giftcard.submitted.v1"
	EventTypeGiftCardApproved     = "giftcard.approved.v1"
	EventTypeGiftCardRejected     = "giftcard.rejected.v1"
	EventTypePaymentInitiated     = "payment.initiated.v1"
	EventTypePaymentConfirmed     = "payment.confirmed.v1"
)

// =============================================================================
// Interfaces
// =============================================================================

type Publisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
	Close() error
}

type Handler func(ctx context.Context, event *Event) error

type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// =============================================================================
// In-memory publisher
// =============================================================================

// Published is one recorded publish call.
type Published struct {
	Topic string
	Event *Event
}

// MemoryPublisher records events instead of sending them. It backs tests and
// deployments without Kafka.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Published
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, topic string, event *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Published{Topic: topic, Event: event})
	return nil
}

func (p *MemoryPublisher) Events() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Published, len(p.events))
	copy(out, p.events)
	return out
}

// ByTopic returns recorded events for topic in publish order.
func (p *MemoryPublisher) ByTopic(topic string) []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Event
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e.Event)
		}
	}
	return out
}

func (p *MemoryPublisher) Close() error { return nil }

var (
	_ Publisher  = (*KafkaPublisher)(nil)
	_ Publisher  = (*MemoryPublisher)(nil)
	_ Subscriber = (*KafkaSubscriber)(nil)
)

// Emit publishes payload on topic and logs failures instead of returning
// them. A nil publisher is a no-op.
func Emit(ctx context.Context, pub Publisher, topic, eventType, source string, payload any) {
	if pub == nil {
		return
	}
	event, err := NewEvent(eventType, source, payload)
	if err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Msg("Failed to build event")
		return
	}
	if err := pub.Publish(ctx, topic, event); err != nil {
		logger.Warn().Err(err).Str("topic", topic).Str("event_type", eventType).Msg("Failed to publish event")
	}
}
