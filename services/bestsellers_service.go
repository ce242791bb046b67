package services

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"

	"marketplace-service/common/logger"
	"marketplace-service/models"
	"marketplace-service/repository"
)

// DefaultBestSellersLimit is the size of the public best sellers list.
const DefaultBestSellersLimit = 50

type BestSellersService struct {
	catalog repository.CatalogStore
	cache   RankingCache
	logger  *zap.Logger
}

func NewBestSellersService(catalog repository.CatalogStore, cache RankingCache, logger *zap.Logger) *BestSellersService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BestSellersService{catalog: catalog, cache: cache, logger: logger}
}

// TopSellers ranks every product that has sold at least once by sell count,
// highest first. Equal counts are ordered by product id so the ranking is
// stable between calls. limit <= 0 means DefaultBestSellersLimit.
func (s *BestSellersService) TopSellers(ctx context.Context, limit int) ([]models.RankedProduct, error) {
	if limit <= 0 {
		limit = DefaultBestSellersLimit
	}
	var version int64
	if s.cache != nil {
		ranked, v, ok := s.cache.Get(ctx, limit)
		if ok {
			return ranked, nil
		}
		version = v
	}

	var sold []models.ListedProduct
	for lp, err := range s.catalog.AllProducts(ctx) {
		if err != nil {
			return nil, storeError(err, "")
		}
		if lp.SellCount == nil {
			continue
		}
		sold = append(sold, lp)
	}

	ranked := rank(sold, limit)
	if s.cache != nil {
		s.cache.Set(ctx, version, limit, ranked)
	}
	logger.FromContext(ctx, s.logger).Debug("best sellers computed",
		zap.Int("candidates", len(sold)), zap.Int("returned", len(ranked)))
	return ranked, nil
}

func rank(products []models.ListedProduct, limit int) []models.RankedProduct {
	slices.SortStableFunc(products, func(a, b models.ListedProduct) int {
		if c := cmp.Compare(*b.SellCount, *a.SellCount); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.SellerID, b.SellerID)
	})
	if len(products) > limit {
		products = products[:limit]
	}

	ranked := make([]models.RankedProduct, len(products))
	for i, p := range products {
		ranked[i] = models.RankedProduct{Rank: i + 1, ListedProduct: p}
	}
	return ranked
}
