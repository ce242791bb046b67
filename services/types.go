package services

import (
	"context"
	"errors"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/models"
	"marketplace-service/repository"
)

// RankingCache stores computed best seller lists. Implementations are fail-open:
// a miss or an unreachable cache must never fail the caller.
type RankingCache interface {
	// Get also returns the cache version the lookup used; Set must be given
	// that version so a ranking computed before an Invalidate is not served.
	Get(ctx context.Context, limit int) (ranked []models.RankedProduct, version int64, ok bool)
	Set(ctx context.Context, version int64, limit int, ranked []models.RankedProduct)
	Invalidate(ctx context.Context) error
}

// IdempotencyStore remembers checkouts by client supplied key.
type IdempotencyStore interface {
	// Reserve claims key. It returns (nil, nil) when the key was free, or the
	// existing record when another attempt already claimed it.
	Reserve(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	Complete(ctx context.Context, key string, summary *models.CheckoutSummary) error
	// Fail marks an attempt that was aborted. When nothing was applied the key is
	// released so the client can retry with it.
	Fail(ctx context.Context, key string, applied bool) error
}

// EventPublisher sends domain events to the configured bus (SNS or Kafka).
type EventPublisher interface {
	PublishCheckoutCompleted(ctx context.Context, event models.CheckoutEvent) error
}

// CheckoutRecorder receives every completed checkout for metrics.
type CheckoutRecorder interface {
	ObserveCheckout(summary *models.CheckoutSummary)
}

// storeError converts repository errors into application errors. Missing
// records become NotFound with the given message, duplicates become Conflict
// and everything else is a storage failure.
func storeError(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrSellerNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrBannerNotFound):
		if notFoundMsg == "" {
			notFoundMsg = err.Error()
		}
		return apperrors.NotFound(notFoundMsg, err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.New(apperrors.KindConflict, "record already exists", err)
	default:
		return apperrors.StorageFailure("storage operation failed", err)
	}
}
