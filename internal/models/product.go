package models

// Product is a catalog record served by the products fragment.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"originalPrice,omitempty"`
	Image         string   `json:"image"`
	Category      string   `json:"category"`
	Rating        float64  `json:"rating"`
	ReviewCount   int      `json:"reviewCount"`
	InStock       bool     `json:"inStock"`
	Tags          []string `json:"tags"`
	IsOnSale      bool     `json:"isOnSale,omitempty"`
	Discount      int      `json:"discount,omitempty"`
}
