package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAccounts struct {
	registerErr error
	loginErr    error
}

func (f *fakeAccounts) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResult, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.RegisterResult{ID: "u1", Name: req.Name, UserType: req.UserType}, nil
}

func (f *fakeAccounts) Authenticate(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.LoginResult{Token: "tok", UserType: req.UserType, Name: "Asha", ID: "u1"}, nil
}

type fakeCheckout struct {
	gotUser  string
	gotItems []models.LineItem
	gotKey   string
	summary  *models.CheckoutSummary
	err      error
}

func (f *fakeCheckout) Checkout(ctx context.Context, userID string, items []models.LineItem, idemKey string) (*models.CheckoutSummary, error) {
	f.gotUser, f.gotItems, f.gotKey = userID, items, idemKey
	return f.summary, f.err
}

type fakeBestSellers struct {
	gotLimit int
	ranked   []models.RankedProduct
	err      error
}

func (f *fakeBestSellers) TopSellers(ctx context.Context, limit int) ([]models.RankedProduct, error) {
	f.gotLimit = limit
	return f.ranked, f.err
}

type fakeCatalog struct {
	removeErr error
	listed    []models.ListedProduct
}

func (f *fakeCatalog) AddProduct(ctx context.Context, sellerID string, attrs models.ProductAttributes) (*models.Product, *models.Seller, error) {
	if sellerID == "ghost" {
		return nil, nil, apperrors.NotFound("seller not found", nil)
	}
	p := models.Product{ID: "p1", ProductAttributes: attrs}
	return &p, &models.Seller{ID: sellerID, Products: []models.Product{p}}, nil
}

func (f *fakeCatalog) ListProducts(ctx context.Context, sellerID string) ([]models.Product, error) {
	return []models.Product{}, nil
}

func (f *fakeCatalog) RemoveProduct(ctx context.Context, sellerID, productID string) error {
	return f.removeErr
}

func (f *fakeCatalog) ListAllProducts(ctx context.Context) ([]models.ListedProduct, error) {
	return f.listed, nil
}

type fakeBanners struct {
	gotSeller string
}

func (f *fakeBanners) AddBanner(ctx context.Context, sellerID string, payload models.BannerPayload) (*models.Banner, error) {
	return &models.Banner{ID: "b1", SellerID: sellerID, BannerPayload: payload}, nil
}

func (f *fakeBanners) ListBanners(ctx context.Context, sellerID string) ([]models.Banner, error) {
	f.gotSeller = sellerID
	return []models.Banner{}, nil
}

func (f *fakeBanners) DeleteBanner(ctx context.Context, sellerID, bannerID string) error {
	return apperrors.NotFound("banner not found", nil)
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	return r
}

func do(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthController(t *testing.T) {
	accounts := &fakeAccounts{}
	h := NewAuthController(accounts)
	r := newEngine()
	r.POST("/signup", h.Register)
	r.POST("/login", h.Login)

	w := do(r, http.MethodPost, "/signup", `{"name":"Asha","mail":"asha@example.com","password":"pw","user_type":"user"}`, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPost, "/signup", `{"name":"Asha","mail":"not-a-mail","password":"pw","user_type":"user"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "mail email")

	accounts.registerErr = apperrors.Conflict("user already exists")
	w = do(r, http.MethodPost, "/signup", `{"name":"Asha","mail":"asha@example.com","password":"pw","user_type":"user"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/login", `{"mail":"asha@example.com","password":"pw","user_type":"user"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "tok", body["token"])
	assert.Equal(t, "user", body["user_type"])

	accounts.loginErr = apperrors.Unauthorized("invalid credentials")
	w = do(r, http.MethodPost, "/login", `{"mail":"asha@example.com","password":"bad","user_type":"user"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckoutController(t *testing.T) {
	checkout := &fakeCheckout{summary: &models.CheckoutSummary{
		UserID: "u1", Status: models.CheckoutStatusSuccess, ItemsProcessed: 1, FailedIncrements: 2, Partial: true,
	}}
	h := NewCheckoutController(checkout, &fakeBestSellers{})
	r := newEngine()
	r.POST("/checkout/:userId", h.Checkout)

	w := do(r, http.MethodPost, "/checkout/u1",
		`{"cartItems":[{"seller_id":"s1","id":"p1","quantity":3}]}`,
		map[string]string{IdempotencyKeyHeader: "abc"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", checkout.gotUser)
	assert.Equal(t, "abc", checkout.gotKey)
	assert.Equal(t, []models.LineItem{{SellerID: "s1", ProductID: "p1", Quantity: 3}}, checkout.gotItems)

	var summary models.CheckoutSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, models.CheckoutStatusSuccess, summary.Status)
	assert.True(t, summary.Partial)
	assert.Equal(t, 2, summary.FailedIncrements)
}

func TestCheckoutController_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"invalid", apperrors.InvalidArgument("cart is empty"), http.StatusBadRequest, "cart is empty"},
		{"conflict", apperrors.Conflict("still in progress"), http.StatusConflict, "still in progress"},
		{"storage", apperrors.StorageFailure("checkout failed", errors.New("mongo: socket closed")), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCheckoutController(&fakeCheckout{err: tt.err}, &fakeBestSellers{})
			r := newEngine()
			r.POST("/checkout/:userId", h.Checkout)

			w := do(r, http.MethodPost, "/checkout/u1", `{"cartItems":[]}`, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.NotContains(t, w.Body.String(), "socket")
		})
	}

	h := NewCheckoutController(&fakeCheckout{}, &fakeBestSellers{})
	r := newEngine()
	r.POST("/checkout/:userId", h.Checkout)
	w := do(r, http.MethodPost, "/checkout/u1", `{"cartItems":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTopSellers(t *testing.T) {
	best := &fakeBestSellers{ranked: []models.RankedProduct{}}
	h := NewCheckoutController(&fakeCheckout{}, best)
	r := newEngine()
	r.GET("/best/seller/products", h.TopSellers)
	r.POST("/best/seller/products", h.TopSellers)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := do(r, method, "/best/seller/products", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	}
	assert.Equal(t, 50, best.gotLimit)
}

func TestCatalogController(t *testing.T) {
	catalog := &fakeCatalog{listed: []models.ListedProduct{{Product: models.Product{ID: "p1"}, SellerID: "s1"}}}
	h := NewCatalogController(catalog, nil)
	r := newEngine()
	r.POST("/seller/add/product/:sellerId", h.AddProduct)
	r.GET("/all/products", h.ListAllProducts)
	r.DELETE("/seller/delete/product/:sellerId/:productId", h.DeleteProduct)

	w := do(r, http.MethodPost, "/seller/add/product/s1", `{"name":"Vase","price":12}`, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	w = do(r, http.MethodPost, "/seller/add/product/s1", `{"price":12}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/seller/add/product/ghost", `{"name":"Vase"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/all/products", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"seller_id":"s1"`)

	catalog.removeErr = apperrors.NotFound("product not found", nil)
	w = do(r, http.MethodDelete, "/seller/delete/product/s1/p1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBannerController(t *testing.T) {
	banners := &fakeBanners{}
	h := NewBannerController(banners)
	r := newEngine()
	r.POST("/seller/add/banner/:sellerId", h.AddBanner)
	r.GET("/seller/get/banner", h.ListBanners)
	r.GET("/seller/banner/:sellerId", h.ListBanners)
	r.DELETE("/seller/delete/banner/:sellerId/:bannerId", h.DeleteBanner)

	w := do(r, http.MethodPost, "/seller/add/banner/s1", `{"title":"Sale"}`, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	do(r, http.MethodGet, "/seller/get/banner", "", nil)
	assert.Equal(t, "", banners.gotSeller)
	do(r, http.MethodGet, "/seller/banner/s1", "", nil)
	assert.Equal(t, "s1", banners.gotSeller)

	w = do(r, http.MethodDelete, "/seller/delete/banner/s1/b9", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
