package models

import "time"

// ProductAttributes are the seller supplied display fields of a product.
type ProductAttributes struct {
	Name        string  `json:"name" bson:"name" binding:"required"`
	Description string  `json:"description" bson:"description"`
	Image       string  `json:"image" bson:"image"`
	Price       float64 `json:"price" bson:"price" binding:"gte=0"`
	Category    string  `json:"category" bson:"category"`
}

// Product is embedded in exactly one seller. SellCount stays nil until the first sale.
type Product struct {
	ID                string `json:"id" bson:"id"`
	ProductAttributes `bson:",inline"`
	SellCount         *int64    `json:"sell_count,omitempty" bson:"sell_count,omitempty"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

// ListedProduct is a product from the flattened catalog with its owner attached.
type ListedProduct struct {
	Product  `bson:",inline"`
	SellerID string `json:"seller_id" bson:"seller_id"`
}

// RankedProduct is one entry of the best sellers view.
type RankedProduct struct {
	Rank          int `json:"rank"`
	ListedProduct `bson:",inline"`
}

func Int64Ptr(v int64) *int64 { return &v }
