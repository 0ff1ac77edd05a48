// Package events publishes shipment lifecycle events for downstream
// consumers (notifications, analytics).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ShipmentEvent describes a terminal label-generation transition.
type ShipmentEvent struct {
	OrderID    string    `json:"orderId"`
	AWBNo      string    `json:"awbNo,omitempty"`
	Courier    string    `json:"courier,omitempty"`
	Status     string    `json:"status"`
	Attempt    int       `json:"attempt"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher emits shipment events. Publish failures must not fail the
// admin request that triggered them; callers log and move on.
type Publisher interface {
	PublishShipmentEvent(ctx context.Context, event ShipmentEvent) error
	Close() error
}

// KafkaPublisher writes shipment events to a Kafka topic, keyed by
// order id so events for one order stay in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher against the given brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) PublishShipmentEvent(ctx context.Context, event ShipmentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding shipment event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing shipment event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishShipmentEvent(context.Context, ShipmentEvent) error { return nil }
func (NopPublisher) Close() error                                              { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
