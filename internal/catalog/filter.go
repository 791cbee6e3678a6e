package catalog

import (
	"sort"
	"strings"

	"github.com/kjstillabower/microstore/internal/models"
)

// Sort keys accepted by Sort.
const (
	SortByName      = "name"
	SortByPriceAsc  = "price-asc"
	SortByPriceDesc = "price-desc"
	SortByRating    = "rating"
)

// Filter is the set of independent predicates applied by Apply.
// Zero values disable a predicate; MaxPrice <= 0 means no upper bound.
type Filter struct {
	Category    string  `json:"category,omitempty"`
	Search      string  `json:"search,omitempty"`
	MinPrice    float64 `json:"minPrice,omitempty"`
	MaxPrice    float64 `json:"maxPrice,omitempty"`
	InStockOnly bool    `json:"inStockOnly,omitempty"`
	MinRating   float64 `json:"minRating,omitempty"`
}

// Match reports whether p satisfies every predicate of f.
func (f Filter) Match(p models.Product) bool {
	return f.matchCategory(p) &&
		f.matchPrice(p) &&
		(!f.InStockOnly || p.InStock) &&
		p.Rating >= f.MinRating &&
		f.matchSearch(p)
}

func (f Filter) matchCategory(p models.Product) bool {
	c := ResolveCategory(f.Category)
	return c == "" || strings.EqualFold(c, p.Category)
}

func (f Filter) matchPrice(p models.Product) bool {
	if p.Price < f.MinPrice {
		return false
	}
	return f.MaxPrice <= 0 || p.Price <= f.MaxPrice
}

func (f Filter) matchSearch(p models.Product) bool {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Description), term) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// Apply returns the products matching f, preserving input order.
func Apply(products []models.Product, f Filter) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Sort orders products in place by key. Unknown keys leave the order unchanged.
func Sort(products []models.Product, key string) {
	var less func(a, b models.Product) bool
	switch key {
	case SortByName:
		less = func(a, b models.Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortByPriceAsc:
		less = func(a, b models.Product) bool { return a.Price < b.Price }
	case SortByPriceDesc:
		less = func(a, b models.Product) bool { return a.Price > b.Price }
	case SortByRating:
		less = func(a, b models.Product) bool { return a.Rating > b.Rating }
	default:
		return
	}
	sort.SliceStable(products, func(i, j int) bool { return less(products[i], products[j]) })
}

// Query filters the demo catalog and sorts the result.
func Query(f Filter, sortKey string) []models.Product {
	out := Apply(All(), f)
	Sort(out, sortKey)
	return out
}
