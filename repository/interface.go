package repository

import (
	"context"
	"errors"
	"iter"

	"marketplace-service/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSellerNotFound  = errors.New("seller not found")
	ErrProductNotFound = errors.New("product not found")
	ErrBannerNotFound  = errors.New("banner not found")
	ErrDuplicate       = errors.New("record already exists")
)

// AccountStore persists users and sellers. Counter increments are single atomic
// storage operations and report ErrUserNotFound / ErrSellerNotFound when the
// target does not exist.
type AccountStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByMail(ctx context.Context, mail string) (*models.User, error)
	IncrementPurchaseCount(ctx context.Context, userID string, delta int64) error

	CreateSeller(ctx context.Context, seller *models.Seller) error
	FindSellerByID(ctx context.Context, id string) (*models.Seller, error)
	FindSellerByMail(ctx context.Context, mail string) (*models.Seller, error)
	IncrementSellCount(ctx context.Context, sellerID string, delta int64) error
}

// CatalogStore owns the products embedded in each seller. Every mutation is a
// single atomic operation addressed by product id; none rewrites the whole
// product array.
type CatalogStore interface {
	AddProduct(ctx context.Context, sellerID string, attrs models.ProductAttributes) (*models.Product, error)
	RemoveProduct(ctx context.Context, sellerID, productID string) error
	FindProduct(ctx context.Context, sellerID, productID string) (*models.Product, error)
	ListProducts(ctx context.Context, sellerID string) ([]models.Product, error)
	IncrementProductSellCount(ctx context.Context, sellerID, productID string, delta int64) error
	// AllProducts yields every seller's products with the seller id attached.
	// Each range over the returned sequence reads the store again.
	AllProducts(ctx context.Context) iter.Seq2[models.ListedProduct, error]
}

type BannerStore interface {
	CreateBanner(ctx context.Context, banner *models.Banner) error
	// ListBanners returns all banners when sellerID is empty.
	ListBanners(ctx context.Context, sellerID string) ([]models.Banner, error)
	// DeleteBanner removes the banner only if it belongs to sellerID.
	DeleteBanner(ctx context.Context, sellerID, bannerID string) error
}

// Store is implemented by every backend.
type Store interface {
	AccountStore
	CatalogStore
	BannerStore
}
