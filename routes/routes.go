package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace-service/controllers"
	"marketplace-service/middleware"
)

type Handlers struct {
	Auth     *controllers.AuthController
	Catalog  *controllers.CatalogController
	Checkout *controllers.CheckoutController
	Banners  *controllers.BannerController
	// Metrics serves the Prometheus scrape endpoint when set.
	Metrics http.Handler
}

// RegisterRoutes mounts the public and authenticated routes. Every mutating
// route sits behind the auth middleware; seller mutations also require the
// token to belong to that seller.
func RegisterRoutes(r *gin.Engine, h Handlers, verifier middleware.TokenVerifier) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	r.POST("/signup", h.Auth.Register)
	r.POST("/login", h.Auth.Login)

	r.GET("/all/products", h.Catalog.ListAllProducts)
	r.GET("/best/seller/products", h.Checkout.TopSellers)
	r.POST("/best/seller/products", h.Checkout.TopSellers)
	r.GET("/seller/get/banner", h.Banners.ListBanners)
	r.GET("/seller/banner/:sellerId", h.Banners.ListBanners)

	auth := r.Group("/", middleware.AuthMiddleware(verifier))
	{
		auth.POST("/checkout/:userId", h.Checkout.Checkout)

		owner := middleware.RequireSellerOwner("sellerId")
		auth.POST("/seller/add/product/:sellerId", owner, h.Catalog.AddProduct)
		auth.GET("/seller/products/:sellerId", h.Catalog.ListProducts)
		auth.DELETE("/seller/delete/product/:sellerId/:productId", owner, h.Catalog.DeleteProduct)
		auth.POST("/seller/uploads/presign/:sellerId", owner, h.Catalog.PresignUpload)

		auth.POST("/seller/add/banner/:sellerId", owner, h.Banners.AddBanner)
		auth.DELETE("/seller/delete/banner/:sellerId/:bannerId", owner, h.Banners.DeleteBanner)
	}
}
