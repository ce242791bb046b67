package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace-service/models"
)

type BannerController struct {
	banners BannerServiceAPI
}

func NewBannerController(banners BannerServiceAPI) *BannerController {
	return &BannerController{banners: banners}
}

func (h *BannerController) AddBanner(c *gin.Context) {
	sellerID, ok := requireParam(c, "sellerId")
	if !ok {
		return
	}
	var payload models.BannerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.Error(bindError(err))
		return
	}

	banner, err := h.banners.AddBanner(c.Request.Context(), sellerID, payload)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Banner added successfully", "banner": banner})
}

// ListBanners serves both the all-banners route and the per-seller route.
func (h *BannerController) ListBanners(c *gin.Context) {
	banners, err := h.banners.ListBanners(c.Request.Context(), c.Param("sellerId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, banners)
}

func (h *BannerController) DeleteBanner(c *gin.Context) {
	sellerID, ok := requireParam(c, "sellerId")
	if !ok {
		return
	}
	bannerID, ok := requireParam(c, "bannerId")
	if !ok {
		return
	}
	if err := h.banners.DeleteBanner(c.Request.Context(), sellerID, bannerID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Banner deleted successfully"})
}
