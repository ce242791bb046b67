package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"marketplace-service/models"
	"marketplace-service/services"
)

type CheckoutController struct {
	checkout    CheckoutServiceAPI
	bestSellers BestSellersServiceAPI
}

func NewCheckoutController(checkout CheckoutServiceAPI, bestSellers BestSellersServiceAPI) *CheckoutController {
	return &CheckoutController{checkout: checkout, bestSellers: bestSellers}
}

// Checkout applies a cart to the sales counters. Line items whose user, seller
// or product no longer exists are reported in the summary; the request still
// succeeds.
func (h *CheckoutController) Checkout(c *gin.Context) {
	userID, ok := requireParam(c, "userId")
	if !ok {
		return
	}
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(bindError(err))
		return
	}

	idemKey := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	summary, err := h.checkout.Checkout(c.Request.Context(), userID, req.CartItems, idemKey)
	if err != nil {
		c.Error(err)
		return
	}
	if summary.Replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusOK, summary)
}

// TopSellers returns the 50 best selling products across all sellers.
func (h *CheckoutController) TopSellers(c *gin.Context) {
	ranked, err := h.bestSellers.TopSellers(c.Request.Context(), services.DefaultBestSellersLimit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ranked)
}
