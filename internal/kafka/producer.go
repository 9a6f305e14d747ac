package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-boxoffice/internal/config"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"

	"github.com/segmentio/kafka-go"
)

const (
	EventPurchaseCreated = "purchase.created"
	EventPaymentVerified = "payment.verified"
)

// Publisher emits domain events. Publishing is best-effort: callers log a
// failure and carry on, the write that triggered it is already committed.
type Publisher interface {
	PublishPurchaseCreated(ctx context.Context, event models.PurchaseEvent) error
	PublishPaymentVerified(ctx context.Context, event models.PaymentEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer messageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// NewPublisher picks the Kafka producer or a logging no-op based on cfg.
func NewPublisher(cfg config.KafkaConfig, log *logger.Logger) Publisher {
	if !cfg.Enabled || cfg.MockMode || len(cfg.Brokers) == 0 {
		log.Warn("KAFKA", "Kafka disabled, events will only be logged")
		return &NopPublisher{Logger: log}
	}
	return NewProducer(cfg.Brokers, cfg.Topics, log)
}

// PublishPurchaseCreated keys the message by ticket id so events for one
// ticket stay ordered within a partition.
func (p *Producer) PublishPurchaseCreated(ctx context.Context, event models.PurchaseEvent) error {
	event.Type = EventPurchaseCreated
	return p.publish(ctx, p.Topics.PurchaseCreated, event.TicketID, event)
}

func (p *Producer) PublishPaymentVerified(ctx context.Context, event models.PaymentEvent) error {
	event.Type = EventPaymentVerified
	return p.publish(ctx, p.Topics.PaymentVerified, event.OrderID, event)
}

func (p *Producer) publish(ctx context.Context, topic, key string, event any) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", topic, err)
	}

	if err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	}); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.Logger.LogKafka("PUBLISHED", topic, key)
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

type NopPublisher struct {
	Logger *logger.Logger
}

func (n *NopPublisher) PublishPurchaseCreated(_ context.Context, event models.PurchaseEvent) error {
	n.Logger.Debug("KAFKA", fmt.Sprintf("[SKIPPED] %s purchase=%s", EventPurchaseCreated, event.PurchaseID))
	return nil
}

func (n *NopPublisher) PublishPaymentVerified(_ context.Context, event models.PaymentEvent) error {
	n.Logger.Debug("KAFKA", fmt.Sprintf("[SKIPPED] %s payment=%s", EventPaymentVerified, event.PaymentID))
	return nil
}

func (n *NopPublisher) Close() error {
	return nil
}
