package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/common/logger"
	"marketplace-service/models"
	"marketplace-service/repository"
)

// CounterLedger moves the user, seller and product sales counters for one line
// item. Each increment is its own atomic storage operation; there is no
// rollback across them.
type CounterLedger struct {
	accounts repository.AccountStore
	catalog  repository.CatalogStore
	logger   *zap.Logger
}

func NewCounterLedger(accounts repository.AccountStore, catalog repository.CatalogStore, logger *zap.Logger) *CounterLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CounterLedger{accounts: accounts, catalog: catalog, logger: logger}
}

// ApplyLineItem increments, in order, the buyer's purchase count, the seller's
// sell count and the product's sell count by item.Quantity. A missing target is
// recorded in the result and the remaining steps still run, except that the
// product step is skipped when the seller is missing. Any other storage error
// is returned immediately.
func (l *CounterLedger) ApplyLineItem(ctx context.Context, userID string, item models.LineItem) (models.LineItemResult, error) {
	log := logger.FromContext(ctx, l.logger)
	result := models.LineItemResult{
		SellerID:  item.SellerID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
	}

	err := l.accounts.IncrementPurchaseCount(ctx, userID, item.Quantity)
	switch {
	case err == nil:
		result.UserUpdated = true
	case errors.Is(err, repository.ErrUserNotFound):
		result.Failures = append(result.Failures, models.FailureUserNotFound)
		log.Warn("purchase count not incremented, user not found", zap.String("user_id", userID))
	default:
		return result, ledgerError(err)
	}

	err = l.accounts.IncrementSellCount(ctx, item.SellerID, item.Quantity)
	switch {
	case err == nil:
		result.SellerUpdated = true
	case errors.Is(err, repository.ErrSellerNotFound):
		result.Failures = append(result.Failures, models.FailureSellerNotFound, models.FailureProductSkipped)
		log.Warn("sell count not incremented, seller not found", zap.String("seller_id", item.SellerID))
		return result, nil
	default:
		return result, ledgerError(err)
	}

	err = l.catalog.IncrementProductSellCount(ctx, item.SellerID, item.ProductID, item.Quantity)
	switch {
	case err == nil:
		result.ProductUpdated = true
	case errors.Is(err, repository.ErrProductNotFound), errors.Is(err, repository.ErrSellerNotFound):
		// The seller can disappear between the two steps; either way the product is gone.
		result.Failures = append(result.Failures, models.FailureProductNotFound)
		log.Warn("product sell count not incremented, product not found",
			zap.String("seller_id", item.SellerID), zap.String("product_id", item.ProductID))
	default:
		return result, ledgerError(err)
	}

	return result, nil
}

func ledgerError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.StorageFailure("storage operation timed out", err)
	}
	return apperrors.StorageFailure("failed to update sales counters", err)
}
