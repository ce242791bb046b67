package controllers

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/models"
)

// IdempotencyKeyHeader carries the client's checkout idempotency key.
const IdempotencyKeyHeader = "Idempotency-Key"

type AccountServiceAPI interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResult, error)
	Authenticate(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error)
}

type CatalogServiceAPI interface {
	AddProduct(ctx context.Context, sellerID string, attrs models.ProductAttributes) (*models.Product, *models.Seller, error)
	ListProducts(ctx context.Context, sellerID string) ([]models.Product, error)
	RemoveProduct(ctx context.Context, sellerID, productID string) error
	ListAllProducts(ctx context.Context) ([]models.ListedProduct, error)
}

type CheckoutServiceAPI interface {
	Checkout(ctx context.Context, userID string, items []models.LineItem, idemKey string) (*models.CheckoutSummary, error)
}

type BestSellersServiceAPI interface {
	TopSellers(ctx context.Context, limit int) ([]models.RankedProduct, error)
}

type BannerServiceAPI interface {
	AddBanner(ctx context.Context, sellerID string, payload models.BannerPayload) (*models.Banner, error)
	ListBanners(ctx context.Context, sellerID string) ([]models.Banner, error)
	DeleteBanner(ctx context.Context, sellerID, bannerID string) error
}

type UploadServiceAPI interface {
	PresignUpload(ctx context.Context, sellerID string, req models.PresignRequest) (*models.PresignedUpload, error)
}

// bindError turns a gin binding failure into a 400 with a readable reason.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field())+" "+fe.Tag())
		}
		return apperrors.InvalidArgument("invalid request: " + strings.Join(fields, ", "))
	}
	return apperrors.InvalidArgument("invalid JSON body")
}

// requireParam reads a path parameter that must not be blank.
func requireParam(c *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Param(name))
	if v == "" {
		c.Error(apperrors.InvalidArgument(name + " is required"))
		return "", false
	}
	return v, true
}
