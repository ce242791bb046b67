package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/common/logger"
	"marketplace-service/models"
	"marketplace-service/repository"
)

type BannerService struct {
	banners  repository.BannerStore
	accounts repository.AccountStore
	logger   *zap.Logger
}

func NewBannerService(banners repository.BannerStore, accounts repository.AccountStore, logger *zap.Logger) *BannerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BannerService{banners: banners, accounts: accounts, logger: logger}
}

// AddBanner stores a banner for an existing seller. The seller's name is copied
// onto the banner and is not updated if the seller is renamed later.
func (s *BannerService) AddBanner(ctx context.Context, sellerID string, payload models.BannerPayload) (*models.Banner, error) {
	if strings.TrimSpace(payload.Title) == "" {
		return nil, apperrors.InvalidArgument("banner title is required")
	}

	seller, err := s.accounts.FindSellerByID(ctx, sellerID)
	if err != nil {
		return nil, storeError(err, "seller not found")
	}

	banner := &models.Banner{
		ID:            uuid.NewString(),
		SellerID:      seller.ID,
		SellerName:    seller.Name,
		BannerPayload: payload,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.banners.CreateBanner(ctx, banner); err != nil {
		return nil, storeError(err, "")
	}

	logger.FromContext(ctx, s.logger).Info("banner added",
		zap.String("seller_id", sellerID), zap.String("banner_id", banner.ID))
	return banner, nil
}

// ListBanners returns every banner, or only sellerID's when it is set.
func (s *BannerService) ListBanners(ctx context.Context, sellerID string) ([]models.Banner, error) {
	banners, err := s.banners.ListBanners(ctx, sellerID)
	if err != nil {
		return nil, storeError(err, "")
	}
	return banners, nil
}

// DeleteBanner removes a banner owned by sellerID. A banner that exists but
// belongs to another seller is reported as not found and left untouched.
func (s *BannerService) DeleteBanner(ctx context.Context, sellerID, bannerID string) error {
	if _, err := s.accounts.FindSellerByID(ctx, sellerID); err != nil {
		return storeError(err, "seller not found")
	}
	if err := s.banners.DeleteBanner(ctx, sellerID, bannerID); err != nil {
		return storeError(err, "banner not found")
	}
	logger.FromContext(ctx, s.logger).Info("banner deleted",
		zap.String("seller_id", sellerID), zap.String("banner_id", bannerID))
	return nil
}
