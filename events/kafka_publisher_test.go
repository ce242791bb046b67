package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-service/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_PublishCheckoutCompleted(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w, "checkouts", nil)
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	err := p.PublishCheckoutCompleted(context.Background(), models.CheckoutEvent{
		EventType:      models.EventCheckoutCompleted,
		UserID:         "u1",
		Items:          []models.LineItem{{SellerID: "s1", ProductID: "p1", Quantity: 2}},
		ItemsProcessed: 1,
		Timestamp:      ts,
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, []byte("u1"), msg.Key)
	assert.Equal(t, ts, msg.Time)
	assert.Equal(t, "event_type", msg.Headers[0].Key)

	var decoded models.CheckoutEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, int64(2), decoded.Items[0].Quantity)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := NewKafkaPublisherWithWriter(&fakeWriter{err: errors.New("leader not available")}, "checkouts", nil)
	err := p.PublishCheckoutCompleted(context.Background(), models.CheckoutEvent{UserID: "u1"})
	assert.ErrorContains(t, err, "leader not available")
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, ParseBrokers(" kafka-1:9092, ,kafka-2:9092"))
	assert.Empty(t, ParseBrokers(""))
}
