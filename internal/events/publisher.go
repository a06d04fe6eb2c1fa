// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/ttanlocc/VMPharmacy-sub000/internal/order"
)

const (
	EventOrderCreated = "order.created"

	writeTimeout = 5 * time.Second
)

type OrderCreatedItem struct {
	DrugID     uuid.UUID       `json:"drug_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TemplateID *uuid.UUID      `json:"template_id,omitempty"`
}

type OrderCreatedEvent struct {
	Event      string             `json:"event"`
	OrderID    uuid.UUID          `json:"order_id"`
	UserID     uuid.UUID          `json:"user_id"`
	CustomerID *uuid.UUID         `json:"customer_id,omitempty"`
	TemplateID *uuid.UUID         `json:"template_id,omitempty"`
	TotalPrice decimal.Decimal    `json:"total_price"`
	Items      []OrderCreatedItem `json:"items"`
	CreatedAt  time.Time          `json:"created_at"`
}

func NewOrderCreatedEvent(o *order.Order) OrderCreatedEvent {
	items := make([]OrderCreatedItem, 0, len(o.OrderItems))
	for _, item := range o.OrderItems {
		items = append(items, OrderCreatedItem{
			DrugID:     item.DrugID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TemplateID: item.TemplateID,
		})
	}
	return OrderCreatedEvent{
		Event:      EventOrderCreated,
		OrderID:    o.ID,
		UserID:     o.UserID,
		CustomerID: o.CustomerID,
		TemplateID: o.TemplateID,
		TotalPrice: o.TotalPrice,
		Items:      items,
		CreatedAt:  o.CreatedAt,
	}
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ order.EventPublisher = (*KafkaPublisher)(nil)

type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           writeTimeout,
	}, topic)
}

func newKafkaPublisher(writer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

// PublishOrderCreated keys the message by order id so all events of one
// order land on the same partition.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, o *order.Order) error {
	data, err := json.Marshal(NewOrderCreatedEvent(o))
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(o.ID.String()),
		Value: data,
		Time:  o.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(EventOrderCreated)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: failed to write %s to %s: %w", EventOrderCreated, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
