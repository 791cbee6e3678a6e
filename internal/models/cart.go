package models

import "time"

// CartItem is one line of a cart. A stored line always has Quantity >= 1.
type CartItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId,omitempty"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Image       string  `json:"image,omitempty"`
	MaxQuantity int     `json:"maxQuantity,omitempty"` // 0 = unlimited
}

// CartSummary holds the totals derived from a list of cart items.
type CartSummary struct {
	Subtotal  float64 `json:"subtotal"`
	Tax       float64 `json:"tax"`
	Shipping  float64 `json:"shipping"`
	Total     float64 `json:"total"`
	ItemCount int     `json:"itemCount"`
}

// Receipt is returned by a simulated checkout.
type Receipt struct {
	OrderID   string      `json:"orderId"`
	Items     []CartItem  `json:"items"`
	Summary   CartSummary `json:"summary"`
	CreatedAt time.Time   `json:"createdAt"`
}
