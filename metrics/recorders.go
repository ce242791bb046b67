package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"

	awspkg "marketplace-service/pkg/aws"
	"marketplace-service/models"
)

// CheckoutRecorder mirrors services.CheckoutRecorder.
type CheckoutRecorder interface {
	ObserveCheckout(summary *models.CheckoutSummary)
}

// CloudWatchMetrics is the subset of awspkg.MetricsClient used for checkouts.
type CloudWatchMetrics interface {
	IsEnabled() bool
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error
}

// CloudWatchRecorder pushes checkout metrics to CloudWatch in the background.
type CloudWatchRecorder struct {
	client  CloudWatchMetrics
	service string
	logger  *zap.Logger
	// sync is set by tests to skip the goroutine.
	sync bool
}

func NewCloudWatchRecorder(client CloudWatchMetrics, service string, logger *zap.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudWatchRecorder{client: client, service: service, logger: logger}
}

func (r *CloudWatchRecorder) ObserveCheckout(summary *models.CheckoutSummary) {
	if r.client == nil || !r.client.IsEnabled() {
		return
	}
	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dims := map[string]string{"Service": r.service}
		if err := r.client.RecordCount(ctx, awspkg.MetricCheckouts, dims); err != nil {
			r.logger.Warn("failed to record checkout metric", zap.Error(err))
			return
		}
		_ = r.client.RecordValue(ctx, awspkg.MetricCheckoutItems, float64(summary.ItemsProcessed), dims)
		if summary.FailedIncrements > 0 {
			_ = r.client.RecordValue(ctx, awspkg.MetricCheckoutFailedIncrements, float64(summary.FailedIncrements), dims)
		}
	}
	if r.sync {
		send()
		return
	}
	go send()
}

// Recorders fans a checkout out to several recorders.
type Recorders []CheckoutRecorder

func (rs Recorders) ObserveCheckout(summary *models.CheckoutSummary) {
	for _, r := range rs {
		if r != nil {
			r.ObserveCheckout(summary)
		}
	}
}
