package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	apperrors "marketplace-service/common/errors"
	awspkg "marketplace-service/pkg/aws"
	"marketplace-service/models"
)

// CheckoutRequest is the body of a queued checkout.
type CheckoutRequest struct {
	UserID         string            `json:"user_id"`
	CartItems      []models.LineItem `json:"cartItems"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

type CheckoutProcessor interface {
	Checkout(ctx context.Context, userID string, items []models.LineItem, idemKey string) (*models.CheckoutSummary, error)
}

type MessageSource interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

type MetricsRecorder interface {
	IsEnabled() bool
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// CheckoutConsumer runs checkouts queued on SQS. A message is removed from
// the queue once it has been processed or rejected. A failed checkout is not
// retried, since the counters it already moved would be counted twice.
type CheckoutConsumer struct {
	source    MessageSource
	processor CheckoutProcessor
	metrics   MetricsRecorder
	logger    *zap.Logger
}

func NewCheckoutConsumer(source MessageSource, processor CheckoutProcessor, metrics MetricsRecorder, logger *zap.Logger) *CheckoutConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutConsumer{source: source, processor: processor, metrics: metrics, logger: logger}
}

// Start blocks until ctx is cancelled.
func (c *CheckoutConsumer) Start(ctx context.Context) {
	c.logger.Info("checkout queue consumer started")
	if err := c.source.StartPolling(ctx, c.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("checkout queue polling stopped", zap.Error(err))
	}
}

func (c *CheckoutConsumer) HandleMessage(ctx context.Context, msg awspkg.Message) error {
	log := c.logger.With(zap.String("message_id", msg.ID))
	body := msg.Body

	// Messages fanned out from SNS arrive wrapped in an envelope.
	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		body = envelope.Message
	}

	var req CheckoutRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		log.Warn("dropping checkout message with invalid JSON", zap.Error(err))
		return nil
	}

	key := req.IdempotencyKey
	if key == "" {
		key = "sqs:" + msg.ID
	}

	summary, err := c.processor.Checkout(ctx, req.UserID, req.CartItems, key)
	switch {
	case err == nil:
		log.Info("queued checkout processed",
			zap.String("user_id", req.UserID),
			zap.Int("items_processed", summary.ItemsProcessed),
			zap.Int("failed_increments", summary.FailedIncrements),
			zap.Bool("replayed", summary.Replayed))
		c.recordMetric()
		return nil
	case ctx.Err() != nil:
		// Shutting down; let the message come back.
		return ctx.Err()
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrConflict):
		log.Warn("rejected queued checkout", zap.String("user_id", req.UserID), zap.Error(err))
		return nil
	default:
		log.Error("queued checkout failed", zap.String("user_id", req.UserID), zap.Error(err))
		return nil
	}
}

func (c *CheckoutConsumer) recordMetric() {
	if c.metrics == nil || !c.metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.metrics.RecordCount(ctx, awspkg.MetricSQSMessages, map[string]string{"Queue": "checkout"})
	}()
}
