package models

import "time"

// LineItem is one (seller, product, quantity) entry of a cart.
type LineItem struct {
	SellerID  string `json:"seller_id"`
	ProductID string `json:"id"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutRequest struct {
	CartItems []LineItem `json:"cartItems"`
}

// Reasons a single counter increment was not applied.
const (
	FailureUserNotFound    = "user_not_found"
	FailureSellerNotFound  = "seller_not_found"
	FailureProductNotFound = "product_not_found"
	// The product counter is not attempted when the seller is missing.
	FailureProductSkipped = "product_skipped"
)

// LineItemResult records which of the three counters a line item moved.
type LineItemResult struct {
	SellerID       string   `json:"seller_id"`
	ProductID      string   `json:"id"`
	Quantity       int64    `json:"quantity"`
	UserUpdated    bool     `json:"user_updated"`
	SellerUpdated  bool     `json:"seller_updated"`
	ProductUpdated bool     `json:"product_updated"`
	Failures       []string `json:"failures,omitempty"`
}

func (r LineItemResult) FailedCount() int { return len(r.Failures) }

type CheckoutStatus string

const CheckoutStatusSuccess CheckoutStatus = "success"

type CheckoutSummary struct {
	UserID           string           `json:"user_id"`
	Status           CheckoutStatus   `json:"status"`
	ItemsProcessed   int              `json:"items_processed"`
	FailedIncrements int              `json:"failed_increments"`
	Partial          bool             `json:"partial"`
	Items            []LineItemResult `json:"items"`
	Replayed         bool             `json:"replayed,omitempty"`
}

const EventCheckoutCompleted = "checkout_completed"

// CheckoutEvent is published after every completed checkout.
type CheckoutEvent struct {
	EventType        string     `json:"event_type"`
	UserID           string     `json:"user_id"`
	Items            []LineItem `json:"items"`
	ItemsProcessed   int        `json:"items_processed"`
	FailedIncrements int        `json:"failed_increments"`
	Timestamp        time.Time  `json:"timestamp"`
}

// Idempotency record states.
const (
	IdempotencyPending   = "pending"
	IdempotencyCompleted = "completed"
	IdempotencyFailed    = "failed"
)

type IdempotencyRecord struct {
	State   string           `json:"state"`
	Summary *CheckoutSummary `json:"summary,omitempty"`
}
