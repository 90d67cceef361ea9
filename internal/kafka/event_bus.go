package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

// Envelope wraps every event published by the service.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID       string               `json:"order_id"`
	ProductID     string               `json:"product_id"`
	BuyerID       string               `json:"buyer_id"`
	Quantity      int                  `json:"quantity"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	Status        domain.OrderStatus   `json:"status"`
	CreatedAt     time.Time            `json:"created_at"`
}

type OrderStatusChangedPayload struct {
	OrderID   string             `json:"order_id"`
	ProductID string             `json:"product_id"`
	BuyerID   string             `json:"buyer_id"`
	From      domain.OrderStatus `json:"from"`
	To        domain.OrderStatus `json:"to"`
	Label     string             `json:"label"`
	Note      string             `json:"note,omitempty"`
	ChangedAt time.Time          `json:"changed_at"`
}

// MessageWriter is the subset of *kafka.Writer the bus needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Topics names the topics events are written to.
type Topics struct {
	OrderCreated       string
	OrderStatusChanged string
}

// EventBus publishes order events as JSON envelopes keyed by order id, so
// all events of one order land on the same partition.
type EventBus struct {
	writer   MessageWriter
	topics   Topics
	producer string
}

// NewWriter builds a synchronous writer; the topic is set per message.
func NewWriter(brokers []string, writeTimeout time.Duration) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           writeTimeout,
	}
}

func NewEventBus(writer MessageWriter, topics Topics, producer string) *EventBus {
	if topics.OrderCreated == "" {
		topics.OrderCreated = ports.TopicOrderCreated
	}
	if topics.OrderStatusChanged == "" {
		topics.OrderStatusChanged = ports.TopicOrderStatusChanged
	}
	return &EventBus{writer: writer, topics: topics, producer: producer}
}

func (b *EventBus) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	return b.publish(ctx, b.topics.OrderCreated, EventOrderCreated, order.ID, OrderCreatedPayload{
		OrderID:       order.ID,
		ProductID:     order.ProductID,
		BuyerID:       order.BuyerID,
		Quantity:      order.Quantity,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Status:        order.Status,
		CreatedAt:     order.CreatedAt,
	})
}

func (b *EventBus) PublishOrderStatusChanged(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	payload := OrderStatusChangedPayload{
		OrderID:   order.ID,
		ProductID: order.ProductID,
		BuyerID:   order.BuyerID,
		From:      from,
		To:        order.Status,
		ChangedAt: order.UpdatedAt,
	}
	if n := len(order.Tracking); n > 0 {
		payload.Label = order.Tracking[n-1].Status
		payload.Note = order.Tracking[n-1].Note
	}
	return b.publish(ctx, b.topics.OrderStatusChanged, EventOrderStatusChanged, order.ID, payload)
}

func (b *EventBus) Close() error {
	return b.writer.Close()
}

func (b *EventBus) publish(ctx context.Context, topic, eventType, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      b.producer,
		CorrelationID: key,
		Payload:       raw,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s to %s: %w", eventType, topic, err)
	}
	return nil
}
