package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/models"
	"marketplace-service/repository"
)

type fixture struct {
	store    *repository.MemoryStore
	userID   string
	sellerID string
	products []string
}

func newFixture(t *testing.T, productCount int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	require.NoError(t, store.CreateUser(ctx, &models.User{ID: "u1", Name: "Buyer", Mail: "buyer@example.com", UserType: models.UserTypeUser}))
	require.NoError(t, store.CreateSeller(ctx, &models.Seller{ID: "s1", Name: "Studio", Mail: "studio@example.com", UserType: models.UserTypeSeller}))

	f := &fixture{store: store, userID: "u1", sellerID: "s1"}
	for i := 0; i < productCount; i++ {
		p, err := store.AddProduct(ctx, "s1", models.ProductAttributes{Name: "Vase", Price: 20})
		require.NoError(t, err)
		f.products = append(f.products, p.ID)
	}
	return f
}

// brokenSellerStore fails every seller counter update.
type brokenSellerStore struct {
	*repository.MemoryStore
}

func (s brokenSellerStore) IncrementSellCount(ctx context.Context, sellerID string, delta int64) error {
	return errors.New("connection reset by peer")
}

func TestCheckout_AllCountersUpdated(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	svc := NewCheckoutService(NewCounterLedger(f.store, f.store, nil), nil)

	summary, err := svc.Checkout(ctx, f.userID, []models.LineItem{
		{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 2},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, models.CheckoutStatusSuccess, summary.Status)
	assert.Equal(t, 1, summary.ItemsProcessed)
	assert.Zero(t, summary.FailedIncrements)
	assert.False(t, summary.Partial)

	user, _ := f.store.FindUserByID(ctx, f.userID)
	seller, _ := f.store.FindSellerByID(ctx, f.sellerID)
	product, _ := f.store.FindProduct(ctx, f.sellerID, f.products[0])
	assert.Equal(t, int64(2), user.PurchaseCount)
	assert.Equal(t, int64(2), seller.SellCount)
	require.NotNil(t, product.SellCount)
	assert.Equal(t, int64(2), *product.SellCount)
}

func TestCheckout_UnknownSellerIsPartial(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	svc := NewCheckoutService(NewCounterLedger(f.store, f.store, nil), nil)

	summary, err := svc.Checkout(ctx, f.userID, []models.LineItem{
		{SellerID: "ghost", ProductID: "p9", Quantity: 1},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, models.CheckoutStatusSuccess, summary.Status)
	assert.True(t, summary.Partial)
	assert.Equal(t, 2, summary.FailedIncrements)
	assert.Equal(t, []string{models.FailureSellerNotFound, models.FailureProductSkipped}, summary.Items[0].Failures)
	assert.True(t, summary.Items[0].UserUpdated)

	// The buyer's counter still moved.
	user, _ := f.store.FindUserByID(ctx, f.userID)
	assert.Equal(t, int64(1), user.PurchaseCount)
}

func TestCheckout_RemovedProductKeepsOtherCounters(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	require.NoError(t, f.store.RemoveProduct(ctx, f.sellerID, f.products[0]))
	svc := NewCheckoutService(NewCounterLedger(f.store, f.store, nil), nil)

	summary, err := svc.Checkout(ctx, f.userID, []models.LineItem{
		{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 1},
		{SellerID: f.sellerID, ProductID: f.products[1], Quantity: 3},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ItemsProcessed)
	assert.Equal(t, 1, summary.FailedIncrements)
	assert.Equal(t, []string{models.FailureProductNotFound}, summary.Items[0].Failures)
	assert.True(t, summary.Items[1].ProductUpdated)

	seller, _ := f.store.FindSellerByID(ctx, f.sellerID)
	assert.Equal(t, int64(4), seller.SellCount)
}

func TestCheckout_UnknownUserStillCountsSales(t *testing.T) {
	f := newFixture(t, 1)
	svc := NewCheckoutService(NewCounterLedger(f.store, f.store, nil), nil)

	summary, err := svc.Checkout(context.Background(), "nobody", []models.LineItem{
		{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 1},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{models.FailureUserNotFound}, summary.Items[0].Failures)
	assert.True(t, summary.Items[0].ProductUpdated)
}

func TestCheckout_Validation(t *testing.T) {
	f := newFixture(t, 1)
	svc := NewCheckoutService(NewCounterLedger(f.store, f.store, nil), nil)

	tests := []struct {
		name   string
		userID string
		items  []models.LineItem
	}{
		{"empty cart", f.userID, nil},
		{"zero quantity", f.userID, []models.LineItem{{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 0}}},
		{"missing product id", f.userID, []models.LineItem{{SellerID: f.sellerID, Quantity: 1}}},
		{"missing user", "", []models.LineItem{{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Checkout(context.Background(), tt.userID, tt.items, "")
			assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		})
	}

	user, _ := f.store.FindUserByID(context.Background(), f.userID)
	assert.Zero(t, user.PurchaseCount)
}

func TestCheckout_StorageFailureAborts(t *testing.T) {
	f := newFixture(t, 1)
	store := brokenSellerStore{f.store}
	svc := NewCheckoutService(NewCounterLedger(store, store, nil), nil)

	_, err := svc.Checkout(context.Background(), f.userID, []models.LineItem{
		{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 1},
		{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 1},
	}, "")
	require.ErrorIs(t, err, apperrors.ErrStorageFailure)

	// Only the first item's user step ran.
	user, _ := f.store.FindUserByID(context.Background(), f.userID)
	assert.Equal(t, int64(1), user.PurchaseCount)
}

func TestCheckout_ConcurrentCheckoutsCountEverySale(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	svc := NewCheckoutService(NewCounterLedger(f.store, f.store, nil), nil)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(ctx, f.userID, []models.LineItem{
				{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 1},
			}, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	product, _ := f.store.FindProduct(ctx, f.sellerID, f.products[0])
	seller, _ := f.store.FindSellerByID(ctx, f.sellerID)
	user, _ := f.store.FindUserByID(ctx, f.userID)
	assert.Equal(t, int64(n), *product.SellCount)
	assert.Equal(t, int64(n), seller.SellCount)
	assert.Equal(t, int64(n), user.PurchaseCount)
}

func TestCheckout_SideEffects(t *testing.T) {
	f := newFixture(t, 1)
	cache := newFakeRankingCache()
	recorder := &fakeRecorder{}
	events := new(MockEventPublisher)
	events.On("PublishCheckoutCompleted", mock.Anything, mock.MatchedBy(func(e models.CheckoutEvent) bool {
		return e.EventType == models.EventCheckoutCompleted && e.UserID == f.userID && e.ItemsProcessed == 1
	})).Return(errors.New("topic unavailable")).Once()

	svc := NewCheckoutService(NewCounterLedger(f.store, f.store, nil), nil,
		WithRankingCache(cache), WithEventPublisher(events), WithCheckoutRecorder(recorder))
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	// A failed publish does not fail the checkout.
	_, err := svc.Checkout(context.Background(), f.userID, []models.LineItem{
		{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 1},
	}, "")
	require.NoError(t, err)

	events.AssertExpectations(t)
	assert.Equal(t, 1, cache.invalidations)
	assert.Len(t, recorder.summaries, 1)
}

func TestCheckout_IdempotentReplay(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	idem := new(MockIdempotencyStore)
	svc := NewCheckoutService(NewCounterLedger(f.store, f.store, nil), nil, WithIdempotency(idem))
	items := []models.LineItem{{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 1}}

	var stored *models.CheckoutSummary
	idem.On("Reserve", mock.Anything, "u1:key-1").Return(nil, nil).Once()
	idem.On("Complete", mock.Anything, "u1:key-1", mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(2).(*models.CheckoutSummary)
	}).Return(nil).Once()

	first, err := svc.Checkout(ctx, f.userID, items, "key-1")
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	idem.On("Reserve", mock.Anything, "u1:key-1").Return(&models.IdempotencyRecord{
		State: models.IdempotencyCompleted, Summary: stored,
	}, nil).Once()

	second, err := svc.Checkout(ctx, f.userID, items, "key-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ItemsProcessed, second.ItemsProcessed)

	product, _ := f.store.FindProduct(ctx, f.sellerID, f.products[0])
	assert.Equal(t, int64(1), *product.SellCount)
	idem.AssertExpectations(t)
}

func TestCheckout_IdempotencyKeyIsPerUser(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, f.store.CreateUser(ctx, &models.User{ID: "u2", Name: "Other", Mail: "other@example.com", UserType: models.UserTypeUser}))
	svc := NewCheckoutService(NewCounterLedger(f.store, f.store, nil), nil, WithIdempotency(newMemoryIdempotencyStore()))
	items := []models.LineItem{{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 2}}

	first, err := svc.Checkout(ctx, "u1", items, "cart-1")
	require.NoError(t, err)
	second, err := svc.Checkout(ctx, "u2", items, "cart-1")
	require.NoError(t, err)

	assert.False(t, second.Replayed)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, "u2", second.UserID)

	u2, err := f.store.FindUserByID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), u2.PurchaseCount)
	product, _ := f.store.FindProduct(ctx, f.sellerID, f.products[0])
	assert.Equal(t, int64(4), *product.SellCount)

	again, err := svc.Checkout(ctx, "u2", items, "cart-1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, "u2", again.UserID)
}

func TestCheckout_IdempotencyKeyInProgress(t *testing.T) {
	f := newFixture(t, 1)
	idem := new(MockIdempotencyStore)
	idem.On("Reserve", mock.Anything, "u1:key-2").Return(&models.IdempotencyRecord{State: models.IdempotencyPending}, nil)
	svc := NewCheckoutService(NewCounterLedger(f.store, f.store, nil), nil, WithIdempotency(idem))

	_, err := svc.Checkout(context.Background(), f.userID, []models.LineItem{
		{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 1},
	}, "key-2")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCheckout_FailedAttemptReleasesKey(t *testing.T) {
	f := newFixture(t, 1)
	store := brokenSellerStore{f.store}
	idem := new(MockIdempotencyStore)
	idem.On("Reserve", mock.Anything, "u1:key-3").Return(nil, nil)
	// The user counter moved before the seller step failed.
	idem.On("Fail", mock.Anything, "u1:key-3", true).Return(nil).Once()
	svc := NewCheckoutService(NewCounterLedger(store, store, nil), nil, WithIdempotency(idem))

	_, err := svc.Checkout(context.Background(), f.userID, []models.LineItem{
		{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 1},
	}, "key-3")
	require.ErrorIs(t, err, apperrors.ErrStorageFailure)
	idem.AssertExpectations(t)
}

func TestCheckout_IdempotencyStoreDownIsIgnored(t *testing.T) {
	f := newFixture(t, 1)
	idem := new(MockIdempotencyStore)
	idem.On("Reserve", mock.Anything, "u1:key-4").Return(nil, errors.New("dial tcp: connection refused"))
	svc := NewCheckoutService(NewCounterLedger(f.store, f.store, nil), nil, WithIdempotency(idem))

	summary, err := svc.Checkout(context.Background(), f.userID, []models.LineItem{
		{SellerID: f.sellerID, ProductID: f.products[0], Quantity: 1},
	}, "key-4")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ItemsProcessed)
	idem.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}
