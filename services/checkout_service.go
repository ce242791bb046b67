package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/common/logger"
	"marketplace-service/models"
)

const postCheckoutTimeout = 5 * time.Second

// LineItemApplier is implemented by CounterLedger.
type LineItemApplier interface {
	ApplyLineItem(ctx context.Context, userID string, item models.LineItem) (models.LineItemResult, error)
}

// CheckoutService runs a cart through the counter ledger.
type CheckoutService struct {
	ledger      LineItemApplier
	idempotency IdempotencyStore
	events      EventPublisher
	ranking     RankingCache
	recorder    CheckoutRecorder
	logger      *zap.Logger
	now         func() time.Time
}

// CheckoutOption configures the optional collaborators of a CheckoutService.
type CheckoutOption func(*CheckoutService)

func WithIdempotency(store IdempotencyStore) CheckoutOption {
	return func(s *CheckoutService) { s.idempotency = store }
}

func WithEventPublisher(p EventPublisher) CheckoutOption {
	return func(s *CheckoutService) { s.events = p }
}

func WithRankingCache(c RankingCache) CheckoutOption {
	return func(s *CheckoutService) { s.ranking = c }
}

func WithCheckoutRecorder(r CheckoutRecorder) CheckoutOption {
	return func(s *CheckoutService) { s.recorder = r }
}

func NewCheckoutService(ledger LineItemApplier, logger *zap.Logger, opts ...CheckoutOption) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CheckoutService{ledger: ledger, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout applies every line item in input order. Missing users, sellers or
// products do not stop the checkout; they are counted in FailedIncrements and
// the summary is marked partial. A storage failure aborts the remaining items
// and is never retried, since a retry could double count the items already
// applied.
//
// When idemKey is set, a completed checkout with the same key is replayed
// from the stored summary without touching any counter.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, items []models.LineItem, idemKey string) (*models.CheckoutSummary, error) {
	if err := validateCart(userID, items); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx, s.logger).With(zap.String("user_id", userID))

	reserved := false
	if idemKey != "" && s.idempotency != nil {
		// Keys are per buyer; two users may pick the same one.
		idemKey = userID + ":" + idemKey
		existing, err := s.idempotency.Reserve(ctx, idemKey)
		switch {
		case err != nil:
			// Redis being down must not block checkouts.
			log.Warn("idempotency store unavailable, processing without key", zap.Error(err))
		case existing != nil:
			return replay(existing)
		default:
			reserved = true
		}
	}

	summary := &models.CheckoutSummary{
		UserID: userID,
		Status: models.CheckoutStatusSuccess,
		Items:  make([]models.LineItemResult, 0, len(items)),
	}
	applied := false
	for i, item := range items {
		result, err := s.ledger.ApplyLineItem(ctx, userID, item)
		if result.UserUpdated || result.SellerUpdated || result.ProductUpdated {
			applied = true
		}
		if err != nil {
			log.Error("checkout aborted",
				zap.Int("item_index", i),
				zap.Int("items_processed", summary.ItemsProcessed),
				zap.String("seller_id", item.SellerID),
				zap.String("product_id", item.ProductID),
				zap.Error(err))
			if reserved {
				s.releaseKey(ctx, idemKey, applied)
			}
			if _, ok := apperrors.As(err); ok {
				return nil, err
			}
			return nil, apperrors.StorageFailure("checkout failed", err)
		}

		summary.Items = append(summary.Items, result)
		summary.ItemsProcessed++
		summary.FailedIncrements += result.FailedCount()
	}
	summary.Partial = summary.FailedIncrements > 0

	if reserved {
		if err := s.idempotency.Complete(detached(ctx), idemKey, summary); err != nil {
			log.Warn("failed to store checkout result for idempotency key", zap.Error(err))
		}
	}

	log.Info("checkout completed",
		zap.Int("items_processed", summary.ItemsProcessed),
		zap.Int("failed_increments", summary.FailedIncrements),
		zap.Bool("partial", summary.Partial))

	s.afterCheckout(ctx, log, items, summary)
	return summary, nil
}

// afterCheckout runs the best-effort side effects of a completed checkout.
func (s *CheckoutService) afterCheckout(ctx context.Context, log *zap.Logger, items []models.LineItem, summary *models.CheckoutSummary) {
	bgCtx, cancel := context.WithTimeout(detached(ctx), postCheckoutTimeout)
	defer cancel()

	if s.ranking != nil {
		if err := s.ranking.Invalidate(bgCtx); err != nil {
			log.Warn("failed to invalidate best sellers cache", zap.Error(err))
		}
	}
	if s.events != nil {
		event := models.CheckoutEvent{
			EventType:        models.EventCheckoutCompleted,
			UserID:           summary.UserID,
			Items:            items,
			ItemsProcessed:   summary.ItemsProcessed,
			FailedIncrements: summary.FailedIncrements,
			Timestamp:        s.now().UTC(),
		}
		if err := s.events.PublishCheckoutCompleted(bgCtx, event); err != nil {
			log.Warn("failed to publish checkout event", zap.Error(err))
		}
	}
	if s.recorder != nil {
		s.recorder.ObserveCheckout(summary)
	}
}

func (s *CheckoutService) releaseKey(ctx context.Context, key string, applied bool) {
	if err := s.idempotency.Fail(detached(ctx), key, applied); err != nil {
		logger.FromContext(ctx, s.logger).Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func replay(record *models.IdempotencyRecord) (*models.CheckoutSummary, error) {
	switch record.State {
	case models.IdempotencyCompleted:
		if record.Summary == nil {
			return nil, apperrors.Conflict("checkout with this idempotency key has no stored result")
		}
		summary := *record.Summary
		summary.Replayed = true
		return &summary, nil
	case models.IdempotencyPending:
		return nil, apperrors.Conflict("checkout with this idempotency key is still in progress")
	default:
		return nil, apperrors.Conflict("checkout with this idempotency key failed after partial application")
	}
}

func validateCart(userID string, items []models.LineItem) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.InvalidArgument("user id is required")
	}
	if len(items) == 0 {
		return apperrors.InvalidArgument("cart is empty")
	}
	for i, item := range items {
		if strings.TrimSpace(item.SellerID) == "" || strings.TrimSpace(item.ProductID) == "" {
			return apperrors.InvalidArgument(fmt.Sprintf("item %d: seller_id and id are required", i))
		}
		if item.Quantity < 1 {
			return apperrors.InvalidArgument(fmt.Sprintf("item %d: quantity must be at least 1", i))
		}
	}
	return nil
}

// detached keeps the request values (request id) but drops its cancellation,
// so bookkeeping still runs after a client disconnects.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
