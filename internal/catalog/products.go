// Package catalog holds the product fragment's mock catalog and its
// client-side style filtering and sorting.
package catalog

import (
	"strings"

	"github.com/kjstillabower/microstore/internal/models"
)

const (
	CategoryElectronics = "Electrónicos"
	CategoryAccessories = "Accesorios"
)

// mockProducts is the fixed demo catalog. Callers always receive copies.
var mockProducts = []models.Product{
	{
		ID:            "1",
		Name:          "MacBook Pro M3 Max",
		Description:   "Laptop profesional con chip M3 Max, 32GB RAM y 1TB SSD. Perfecta para desarrollo y creatividad.",
		Price:         2999,
		OriginalPrice: 3299,
		Image:         "💻",
		Category:      CategoryElectronics,
		Rating:        4.9,
		ReviewCount:   127,
		InStock:       true,
		Tags:          []string{"Pro", "M3 Max", "32GB RAM"},
		IsOnSale:      true,
		Discount:      9,
	},
	{
		ID:            "2",
		Name:          "iPhone 15 Pro Max",
		Description:   "El iPhone más avanzado con cámara profesional, chip A17 Pro y titanio premium.",
		Price:         1199,
		OriginalPrice: 1299,
		Image:         "📱",
		Category:      CategoryElectronics,
		Rating:        4.8,
		ReviewCount:   89,
		InStock:       true,
		Tags:          []string{"Pro Max", "Titanio", "A17 Pro"},
		IsOnSale:      true,
		Discount:      8,
	},
	{
		ID:          "3",
		Name:        "AirPods Pro (2ª gen)",
		Description: "Auriculares inalámbricos con cancelación activa de ruido y audio espacial.",
		Price:       249,
		Image:       "🎧",
		Category:    CategoryElectronics,
		Rating:      4.7,
		ReviewCount: 203,
		InStock:     true,
		Tags:        []string{"Pro", "ANC", "Spatial Audio"},
	},
	{
		ID:          "4",
		Name:        "Apple Watch Ultra",
		Description: "Reloj deportivo resistente con GPS de doble frecuencia y batería de larga duración.",
		Price:       799,
		Image:       "⌚",
		Category:    CategoryElectronics,
		Rating:      4.6,
		ReviewCount: 156,
		InStock:     false,
		Tags:        []string{"Ultra", "GPS", "Deportivo"},
	},
	{
		ID:          "5",
		Name:        "iPad Pro 12.9",
		Description: "Tablet profesional con chip M2, pantalla Liquid Retina XDR y Apple Pencil compatible.",
		Price:       1099,
		Image:       "📱",
		Category:    CategoryElectronics,
		Rating:      4.8,
		ReviewCount: 92,
		InStock:     true,
		Tags:        []string{"Pro", "M2", "12.9\""},
	},
	{
		ID:          "6",
		Name:        "Magic Keyboard",
		Description: "Teclado inalámbrico con Touch ID, retroiluminación y conectividad USB-C.",
		Price:       199,
		Image:       "⌨️",
		Category:    CategoryAccessories,
		Rating:      4.5,
		ReviewCount: 78,
		InStock:     true,
		Tags:        []string{"Touch ID", "Wireless", "Backlit"},
	},
}

// categorySlugs maps the shell's selector values to catalog categories.
var categorySlugs = map[string]string{
	"electronics": CategoryElectronics,
	"accessories": CategoryAccessories,
}

// All returns a copy of the demo catalog.
func All() []models.Product {
	out := make([]models.Product, len(mockProducts))
	for i, p := range mockProducts {
		out[i] = clone(p)
	}
	return out
}

// Find returns the product with the given id.
func Find(id string) (models.Product, bool) {
	id = strings.TrimSpace(id)
	for _, p := range mockProducts {
		if p.ID == id {
			return clone(p), true
		}
	}
	return models.Product{}, false
}

// Categories returns the distinct categories in catalog order.
func Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range mockProducts {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// ResolveCategory turns a selector value ("electronics", "Electrónicos", "all")
// into a catalog category. Empty means no category filter.
func ResolveCategory(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "all", "todos":
		return ""
	}
	if c, ok := categorySlugs[strings.ToLower(s)]; ok {
		return c
	}
	return s
}

func clone(p models.Product) models.Product {
	if p.Tags != nil {
		p.Tags = append([]string(nil), p.Tags...)
	}
	return p
}
