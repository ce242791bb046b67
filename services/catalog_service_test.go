package services

import (
	"context"
	"iter"
	"net/http"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "marketplace-service/common/errors"
	awspkg "marketplace-service/pkg/aws"
	"marketplace-service/models"
	"marketplace-service/repository"
)

func TestCatalogService_AddAndRemove(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	cache := newFakeRankingCache()
	svc := NewCatalogService(f.store, f.store, cache, nil)

	product, seller, err := svc.AddProduct(ctx, f.sellerID, models.ProductAttributes{Name: "Bowl", Price: 12.5})
	require.NoError(t, err)
	assert.NotEmpty(t, product.ID)
	assert.Nil(t, product.SellCount)
	require.Len(t, seller.Products, 1)

	_, _, err = svc.AddProduct(ctx, "ghost", models.ProductAttributes{Name: "Bowl"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, _, err = svc.AddProduct(ctx, f.sellerID, models.ProductAttributes{Name: " "})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	require.NoError(t, svc.RemoveProduct(ctx, f.sellerID, product.ID))
	assert.Equal(t, 1, cache.invalidations)

	err = svc.RemoveProduct(ctx, f.sellerID, product.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogService_ListAllProducts(t *testing.T) {
	f := newFixture(t, 3)
	svc := NewCatalogService(f.store, f.store, nil, nil)

	listed, err := svc.ListAllProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, lp := range listed {
		assert.Equal(t, f.sellerID, lp.SellerID)
		assert.Equal(t, f.products[i], lp.ID)
	}

	_, err = svc.ListProducts(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBestSellers(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	// products[3] never sells.
	sales := map[int]int64{0: 2, 1: 5, 2: 2}
	for i, n := range sales {
		require.NoError(t, f.store.IncrementProductSellCount(ctx, f.sellerID, f.products[i], n))
	}

	cache := newFakeRankingCache()
	svc := NewBestSellersService(f.store, cache, nil)

	ranked, err := svc.TopSellers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, f.products[1], ranked[0].ID)
	assert.Equal(t, 1, ranked[0].Rank)

	// Ties are broken by product id.
	lo, hi := f.products[0], f.products[2]
	if hi < lo {
		lo, hi = hi, lo
	}
	assert.Equal(t, lo, ranked[1].ID)
	assert.Equal(t, hi, ranked[2].ID)
	assert.Equal(t, 3, ranked[2].Rank)

	top, err := svc.TopSellers(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	_, _, cached := cache.Get(ctx, DefaultBestSellersLimit)
	assert.True(t, cached)
}

func TestBestSellers_CappedAtDefaultLimit(t *testing.T) {
	f := newFixture(t, 60)
	ctx := context.Background()
	for i, id := range f.products {
		require.NoError(t, f.store.IncrementProductSellCount(ctx, f.sellerID, id, int64(i+1)))
	}
	svc := NewBestSellersService(f.store, nil, nil)

	ranked, err := svc.TopSellers(ctx, DefaultBestSellersLimit)
	require.NoError(t, err)
	require.Len(t, ranked, DefaultBestSellersLimit)
	assert.Equal(t, f.products[59], ranked[0].ID)
	assert.Equal(t, int64(60), *ranked[0].SellCount)
	assert.Equal(t, int64(11), *ranked[49].SellCount)
	assert.Equal(t, 50, ranked[49].Rank)
}

// invalidatingCatalog bumps the ranking cache while the catalog is being read,
// the way a concurrent checkout would.
type invalidatingCatalog struct {
	*repository.MemoryStore
	cache *fakeRankingCache
}

func (c invalidatingCatalog) AllProducts(ctx context.Context) iter.Seq2[models.ListedProduct, error] {
	_ = c.cache.Invalidate(ctx)
	return c.MemoryStore.AllProducts(ctx)
}

func TestBestSellers_RankingComputedBeforeInvalidateIsNotServed(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, f.store.IncrementProductSellCount(ctx, f.sellerID, f.products[0], 1))
	cache := newFakeRankingCache()
	svc := NewBestSellersService(invalidatingCatalog{f.store, cache}, cache, nil)

	_, err := svc.TopSellers(ctx, DefaultBestSellersLimit)
	require.NoError(t, err)

	_, _, cached := cache.Get(ctx, DefaultBestSellersLimit)
	assert.False(t, cached)
}

func TestBestSellers_EmptyCatalog(t *testing.T) {
	f := newFixture(t, 0)
	svc := NewBestSellersService(f.store, nil, nil)

	ranked, err := svc.TopSellers(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestBannerService(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	svc := NewBannerService(f.store, f.store, nil)

	banner, err := svc.AddBanner(ctx, f.sellerID, models.BannerPayload{Title: "Spring sale"})
	require.NoError(t, err)
	assert.Equal(t, "Studio", banner.SellerName)

	_, err = svc.AddBanner(ctx, "ghost", models.BannerPayload{Title: "Nope"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	all, err := svc.ListBanners(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, f.store.CreateSeller(ctx, &models.Seller{ID: "s2", Name: "Other", Mail: "other@example.com", UserType: models.UserTypeSeller}))
	err = svc.DeleteBanner(ctx, "s2", banner.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, svc.DeleteBanner(ctx, f.sellerID, banner.ID))
	all, _ = svc.ListBanners(ctx, "")
	assert.Empty(t, all)
}

func TestImageUploader(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	presigner := new(MockPresigner)
	presigner.On("PresignPutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "art-images" && *in.ContentType == "image/png"
	})).Return(&v4.PresignedHTTPRequest{
		URL:          "https://art-images.s3.amazonaws.com/signed",
		Method:       http.MethodPut,
		SignedHeader: http.Header{"Host": {"art-images.s3.amazonaws.com"}},
	}, nil)

	up := NewImageUploader(presigner, f.store, ImageUploaderConfig{Bucket: "art-images", Prefix: "products", CDNDomain: "cdn.example.com"}, nil)
	up.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	res, err := up.PresignUpload(ctx, f.sellerID, models.PresignRequest{Filename: "vase.PNG", ContentType: "image/png", ExpiresSeconds: 7200})
	require.NoError(t, err)
	assert.Regexp(t, `^products/s1/[0-9a-f-]{36}\.png$`, res.Key)
	assert.Equal(t, "https://cdn.example.com/"+res.Key, res.PublicURL)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), res.ExpiresAt)
	assert.NotContains(t, res.Headers, "Host")

	_, err = up.PresignUpload(ctx, f.sellerID, models.PresignRequest{Filename: "x.exe", ContentType: "application/octet-stream"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = up.PresignUpload(ctx, "ghost", models.PresignRequest{Filename: "x.png", ContentType: "image/png"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

type MockSNSPublisher struct{ mock.Mock }

func (m *MockSNSPublisher) Publish(ctx context.Context, topicArn string, message []byte, attributes map[string]string) error {
	args := m.Called(ctx, topicArn, message, attributes)
	return args.Error(0)
}

var _ awspkg.SNSPublisher = (*MockSNSPublisher)(nil)

func TestSNSEventPublisher(t *testing.T) {
	client := new(MockSNSPublisher)
	client.On("Publish", mock.Anything, "arn:aws:sns:us-east-1:000000000000:checkouts",
		mock.MatchedBy(func(b []byte) bool { return len(b) > 0 }),
		map[string]string{"event_type": models.EventCheckoutCompleted},
	).Return(nil).Once()

	p := NewSNSEventPublisher(client, "arn:aws:sns:us-east-1:000000000000:checkouts")
	err := p.PublishCheckoutCompleted(context.Background(), models.CheckoutEvent{EventType: models.EventCheckoutCompleted, UserID: "u1"})
	require.NoError(t, err)
	client.AssertExpectations(t)
}
