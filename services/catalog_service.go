package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/common/logger"
	"marketplace-service/models"
	"marketplace-service/repository"
)

// CatalogService exposes seller product management on top of the catalog store.
type CatalogService struct {
	catalog  repository.CatalogStore
	accounts repository.AccountStore
	ranking  RankingCache
	logger   *zap.Logger
}

func NewCatalogService(catalog repository.CatalogStore, accounts repository.AccountStore, ranking RankingCache, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{catalog: catalog, accounts: accounts, ranking: ranking, logger: logger}
}

// AddProduct appends a product to the seller and returns the updated seller view.
func (s *CatalogService) AddProduct(ctx context.Context, sellerID string, attrs models.ProductAttributes) (*models.Product, *models.Seller, error) {
	if strings.TrimSpace(attrs.Name) == "" {
		return nil, nil, apperrors.InvalidArgument("product name is required")
	}
	if attrs.Price < 0 {
		return nil, nil, apperrors.InvalidArgument("price must not be negative")
	}

	product, err := s.catalog.AddProduct(ctx, sellerID, attrs)
	if err != nil {
		return nil, nil, storeError(err, "seller not found")
	}

	seller, err := s.accounts.FindSellerByID(ctx, sellerID)
	if err != nil {
		return nil, nil, storeError(err, "seller not found")
	}

	logger.FromContext(ctx, s.logger).Info("product added",
		zap.String("seller_id", sellerID), zap.String("product_id", product.ID))
	return product, seller, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, sellerID string) ([]models.Product, error) {
	products, err := s.catalog.ListProducts(ctx, sellerID)
	if err != nil {
		return nil, storeError(err, "seller not found")
	}
	return products, nil
}

func (s *CatalogService) FindProduct(ctx context.Context, sellerID, productID string) (*models.Product, error) {
	product, err := s.catalog.FindProduct(ctx, sellerID, productID)
	if err != nil {
		return nil, storeError(err, "")
	}
	return product, nil
}

// RemoveProduct deletes one product. Checkouts still in flight for it record a
// product_not_found failure instead of incrementing.
func (s *CatalogService) RemoveProduct(ctx context.Context, sellerID, productID string) error {
	if err := s.catalog.RemoveProduct(ctx, sellerID, productID); err != nil {
		return storeError(err, "")
	}

	// The product may have been ranked.
	if s.ranking != nil {
		if err := s.ranking.Invalidate(ctx); err != nil {
			logger.FromContext(ctx, s.logger).Warn("failed to invalidate best sellers cache", zap.Error(err))
		}
	}
	logger.FromContext(ctx, s.logger).Info("product removed",
		zap.String("seller_id", sellerID), zap.String("product_id", productID))
	return nil
}

// ListAllProducts materializes the flattened catalog.
func (s *CatalogService) ListAllProducts(ctx context.Context) ([]models.ListedProduct, error) {
	listed := []models.ListedProduct{}
	for lp, err := range s.catalog.AllProducts(ctx) {
		if err != nil {
			return nil, storeError(err, "")
		}
		listed = append(listed, lp)
	}
	return listed, nil
}
