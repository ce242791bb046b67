package services

import (
	"context"
	"encoding/json"
	"fmt"

	awspkg "marketplace-service/pkg/aws"
	"marketplace-service/models"
)

// SNSEventPublisher publishes checkout events to an SNS topic. The event type
// is sent as a message attribute for subscription filters.
type SNSEventPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(client awspkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicArn: topicArn}
}

func (p *SNSEventPublisher) PublishCheckoutCompleted(ctx context.Context, event models.CheckoutEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal checkout event: %w", err)
	}
	return p.client.Publish(ctx, p.topicArn, body, map[string]string{
		"event_type": event.EventType,
	})
}
