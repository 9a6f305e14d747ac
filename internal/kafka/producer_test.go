package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ms-boxoffice/internal/config"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

var testTopics = config.TopicConfig{PurchaseCreated: "t.purchase", PaymentVerified: "t.payment"}

func TestProducer_PublishPurchaseCreated(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Topics: testTopics, Logger: logger.NewNop()}

	err := p.PublishPurchaseCreated(context.Background(), models.PurchaseEvent{PurchaseID: "p-1", TicketID: "t-1", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "t.purchase", msg.Topic)
	assert.Equal(t, "t-1", string(msg.Key))

	var decoded models.PurchaseEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, EventPurchaseCreated, decoded.Type)
	assert.Equal(t, 2, decoded.Quantity)
}

func TestProducer_PublishPaymentVerified_WrapsWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &Producer{Writer: w, Topics: testTopics, Logger: logger.NewNop()}

	err := p.PublishPaymentVerified(context.Background(), models.PaymentEvent{PaymentID: "pay-1", OrderID: "ord-1"})
	assert.ErrorContains(t, err, "t.payment")
	assert.ErrorContains(t, err, "broker down")
}

func TestNewPublisher_DisabledFallsBackToNop(t *testing.T) {
	pub := NewPublisher(config.KafkaConfig{Enabled: false, Brokers: []string{"localhost:9092"}}, logger.NewNop())
	_, ok := pub.(*NopPublisher)
	assert.True(t, ok)

	pub = NewPublisher(config.KafkaConfig{Enabled: true, MockMode: true, Brokers: []string{"localhost:9092"}}, logger.NewNop())
	_, ok = pub.(*NopPublisher)
	assert.True(t, ok)

	assert.NoError(t, pub.PublishPurchaseCreated(context.Background(), models.PurchaseEvent{}))
}
