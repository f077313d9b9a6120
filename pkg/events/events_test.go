package events

import (
	"context"
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	seen := make(map[string]bool)
	for _, topic := range AllTopics {
		if !strings.HasPrefix(topic, "chatcommerce.") {
			t.Errorf("topic %s should use the chatcommerce prefix", topic)
		}
		if seen[topic] {
			t.Errorf("duplicate topic %s", topic)
		}
		seen[topic] = true
	}
}

func TestNewEvent(t *testing.T) {
	payload := TransactionPayload{
		TransactionID: "tx-1",
		Reference:     "AIR-123",
		Type:          "airtime",
		Status:        "completed",
		Amount:        1000,
	}

	event, err := NewEvent(EventTypeTransactionCompleted, "bot-service", payload)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if event.EventID == "" {
		t.Error("EventID should be generated")
	}
	if event.OccurredAt.IsZero() {
		t.Error("OccurredAt should be set")
	}

	event.WithCorrelationID("tx-1").WithMetadata("flow", "airtime")
	if event.CorrelationID != "tx-1" || event.Metadata["flow"] != "airtime" {
		t.Error("builder methods should set fields")
	}

	var decoded TransactionPayload
	if err := event.Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.Amount != 1000 || decoded.Reference != "AIR-123" {
		t.Errorf("decoded payload = %+v", decoded)
	}
}

func TestNewEvent_UnencodablePayload(t *testing.T) {
	if _, err := NewEvent("bad.v1", "test", make(chan int)); err == nil {
		t.Error("expected error for unencodable payload")
	}
}

func TestMemoryPublisher(t *testing.T) {
	p := NewMemoryPublisher()
	ctx := context.Background()

	e1, _ := NewEvent(EventTypeTransactionCompleted, "bot-service", TransactionPayload{Amount: 1})
	e2, _ := NewEvent(EventTypeTransactionFailed, "bot-service", TransactionPayload{Amount: 2})

	_ = p.Publish(ctx, TopicTransactionCompleted, e1)
	_ = p.Publish(ctx, TopicTransactionFailed, e2)

	if len(p.Events()) != 2 {
		t.Fatalf("expected 2 events, got %d", len(p.Events()))
	}
	got := p.ByTopic(TopicTransactionFailed)
	if len(got) != 1 || got[0].EventID != e2.EventID {
		t.Errorf("ByTopic returned %+v", got)
	}
}
