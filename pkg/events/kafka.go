package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Rohianon/chatcommerce/pkg/logger"
	"github.com/Rohianon/chatcommerce/pkg/telemetry"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type KafkaPublisher struct {
	mu      sync.Mutex
	writers map[string]*kafka.Writer
	brokers []string
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writers: make(map[string]*kafka.Writer),
		brokers: brokers,
	}
}

func (p *KafkaPublisher) getWriter(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = w
	return w
}

// Publish writes event keyed by its correlation ID (falling back to the
// event ID) so events for one transaction land on one partition.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event *Event) error {
	ctx, span := telemetry.StartMessagingSpan(ctx, topic, trace.SpanKindProducer)
	span.SetAttributes(
		attribute.String("messaging.message.id", event.EventID),
		attribute.String("event.type", event.EventType),
	)

	data, err := json.Marshal(event)
	if err != nil {
		telemetry.EndSpan(span, err)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var headers []kafka.Header
	telemetry.InjectTraceContext(ctx, &headers)

	key := event.CorrelationID
	if key == "" {
		key = event.EventID
	}

	err = p.getWriter(topic).WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		telemetry.EndSpan(span, err)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	telemetry.EndSpan(span, nil)
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type KafkaSubscriber struct {
	mu      sync.Mutex
	brokers []string
	groupID string
	readers []*kafka.Reader
}

func NewKafkaSubscriber(brokers []string, groupID string) *KafkaSubscriber {
	return &KafkaSubscriber{
		brokers: brokers,
		groupID: groupID,
	}
}

// Subscribe consumes topic in a background goroutine until ctx is done.
// Offsets are committed only after the handler returns nil.
func (s *KafkaSubscriber) Subscribe(ctx context.Context, topic string, handler Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.brokers,
		Topic:    topic,
		GroupID:  s.groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	s.mu.Lock()
	s.readers = append(s.readers, reader)
	s.mu.Unlock()

	go s.consume(ctx, reader, topic, handler)
	return nil
}

func (s *KafkaSubscriber) consume(ctx context.Context, reader *kafka.Reader, topic string, handler Handler) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Str("topic", topic).Msg("Failed to fetch message")
			time.Sleep(time.Second)
			continue
		}

		msgCtx := telemetry.ExtractTraceContext(ctx, msg.Headers)
		msgCtx, span := telemetry.StartMessagingSpan(msgCtx, topic, trace.SpanKindConsumer)

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error().Err(err).Str("topic", topic).Int64("offset", msg.Offset).Msg("Dropping malformed event")
			telemetry.EndSpan(span, err)
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		span.SetAttributes(attribute.String("event.type", event.EventType))

		if err := handler(msgCtx, &event); err != nil {
			logger.Error().Err(err).Str("topic", topic).Str("event_id", event.EventID).Msg("Event handler failed")
			telemetry.EndSpan(span, err)
			continue
		}
		telemetry.EndSpan(span, nil)

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Str("topic", topic).Msg("Failed to commit offset")
		}
	}
}

func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, r := range s.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
