package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace-service/models"
)

type CatalogController struct {
	catalog CatalogServiceAPI
	uploads UploadServiceAPI
}

func NewCatalogController(catalog CatalogServiceAPI, uploads UploadServiceAPI) *CatalogController {
	return &CatalogController{catalog: catalog, uploads: uploads}
}

func (h *CatalogController) AddProduct(c *gin.Context) {
	sellerID, ok := requireParam(c, "sellerId")
	if !ok {
		return
	}
	var attrs models.ProductAttributes
	if err := c.ShouldBindJSON(&attrs); err != nil {
		c.Error(bindError(err))
		return
	}

	product, seller, err := h.catalog.AddProduct(c.Request.Context(), sellerID, attrs)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Product added successfully",
		"product": product,
		"seller":  seller,
	})
}

func (h *CatalogController) ListProducts(c *gin.Context) {
	sellerID, ok := requireParam(c, "sellerId")
	if !ok {
		return
	}
	products, err := h.catalog.ListProducts(c.Request.Context(), sellerID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// ListAllProducts returns every product of every seller with its seller_id.
func (h *CatalogController) ListAllProducts(c *gin.Context) {
	products, err := h.catalog.ListAllProducts(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *CatalogController) DeleteProduct(c *gin.Context) {
	sellerID, ok := requireParam(c, "sellerId")
	if !ok {
		return
	}
	productID, ok := requireParam(c, "productId")
	if !ok {
		return
	}
	if err := h.catalog.RemoveProduct(c.Request.Context(), sellerID, productID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// PresignUpload returns a presigned S3 PUT URL for a product or banner image.
func (h *CatalogController) PresignUpload(c *gin.Context) {
	sellerID, ok := requireParam(c, "sellerId")
	if !ok {
		return
	}
	var req models.PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(bindError(err))
		return
	}

	upload, err := h.uploads.PresignUpload(c.Request.Context(), sellerID, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, upload)
}
