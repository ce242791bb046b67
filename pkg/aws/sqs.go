package aws

import (
	"context"
	"errors"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

// SQSAPI is the subset of *sqs.Client the consumer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Message is one received SQS message.
type Message struct {
	ID   string
	Body string
}

// MessageHandler processes an SQS message. Returning nil deletes the message;
// an error leaves it to become visible again after the visibility timeout.
type MessageHandler func(ctx context.Context, msg Message) error

// SQSConsumer provides methods for consuming messages from SQS queues
type SQSConsumer struct {
	client   SQSAPI
	queueURL string
	logger   *zap.Logger

	MaxMessages       int32
	WaitTimeSeconds   int32
	VisibilityTimeout int32
}

// NewSQSConsumer creates a new SQS consumer for the given queue URL
func NewSQSConsumer(cfg sdkaws.Config, queueURL string, logger *zap.Logger) *SQSConsumer {
	return NewSQSConsumerWithAPI(sqs.NewFromConfig(cfg), queueURL, logger)
}

// NewSQSConsumerWithAPI builds a consumer around an existing client.
func NewSQSConsumerWithAPI(client SQSAPI, queueURL string, logger *zap.Logger) *SQSConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQSConsumer{
		client:            client,
		queueURL:          queueURL,
		logger:            logger,
		MaxMessages:       10,
		WaitTimeSeconds:   20,
		VisibilityTimeout: 30,
	}
}

// StartPolling polls SQS for messages and processes them with the handler.
// Runs until ctx is cancelled.
func (c *SQSConsumer) StartPolling(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("starting SQS polling", zap.String("queue_url", c.queueURL))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("SQS polling stopped")
			return ctx.Err()
		default:
			if err := c.PollOnce(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("error polling SQS", zap.Error(err))
			}
		}
	}
}

// PollOnce receives one batch and hands each message to handler.
func (c *SQSConsumer) PollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            sdkaws.String(c.queueURL),
		MaxNumberOfMessages: c.MaxMessages,
		WaitTimeSeconds:     c.WaitTimeSeconds,
		VisibilityTimeout:   c.VisibilityTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}

		m := Message{ID: sdkaws.ToString(msg.MessageId), Body: *msg.Body}
		if err := handler(ctx, m); err != nil {
			c.logger.Warn("failed to process message, leaving it on the queue",
				zap.String("message_id", m.ID), zap.Error(err))
			continue
		}

		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      sdkaws.String(c.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			c.logger.Error("failed to delete message", zap.String("message_id", m.ID), zap.Error(err))
		}
	}

	return nil
}
