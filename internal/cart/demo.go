package cart

import "github.com/kjstillabower/microstore/internal/models"

// DemoItems is the standalone cart's starting content.
func DemoItems() []models.CartItem {
	return []models.CartItem{
		{ID: "1", ProductID: "1", Name: `MacBook Pro 16" M3 Max`, Price: 3299, Quantity: 1, Image: "💻", MaxQuantity: 5},
		{ID: "2", ProductID: "2", Name: "iPhone 15 Pro Max", Price: 1199, Quantity: 2, Image: "📱", MaxQuantity: 3},
		{ID: "3", ProductID: "3", Name: "AirPods Pro (3ra Gen)", Price: 249, Quantity: 1, Image: "🎧", MaxQuantity: 10},
	}
}

// ExtraDemoItems are offered by the standalone "add demo item" action.
func ExtraDemoItems() []models.CartItem {
	return []models.CartItem{
		{ID: "4", Name: `iPad Pro 12.9"`, Price: 1099, Quantity: 1, Image: "📱"},
		{ID: "5", Name: "Teclado Mecánico", Price: 129, Quantity: 1, Image: "⌨️"},
		{ID: "6", Name: "Mouse Gaming", Price: 79, Quantity: 1, Image: "🖱️"},
		{ID: "7", Name: "Monitor 4K", Price: 599, Quantity: 1, Image: "🖥️"},
		{ID: "8", Name: "Webcam HD", Price: 149, Quantity: 1, Image: "📷"},
	}
}
