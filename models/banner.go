package models

import "time"

type BannerPayload struct {
	Title       string `json:"title" bson:"title" binding:"required"`
	Description string `json:"description" bson:"description"`
	Image       string `json:"image" bson:"image"`
	Link        string `json:"link" bson:"link"`
}

// Banner keeps the seller's name as it was when the banner was created.
type Banner struct {
	ID            string `json:"id" bson:"_id"`
	SellerID      string `json:"seller_id" bson:"seller_id"`
	SellerName    string `json:"seller_name" bson:"seller_name"`
	BannerPayload `bson:",inline"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

type PresignRequest struct {
	Filename       string `json:"filename" binding:"required"`
	ContentType    string `json:"content_type" binding:"required"`
	ExpiresSeconds int64  `json:"expires_seconds"`
}

type PresignedUpload struct {
	UploadURL string            `json:"upload_url"`
	Key       string            `json:"key"`
	PublicURL string            `json:"public_url"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}
