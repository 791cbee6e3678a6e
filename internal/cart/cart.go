// Package cart implements the cart fragment's line-item state, derived totals
// and simulated checkout.
package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kjstillabower/microstore/internal/models"
)

const (
	// TaxRate is applied to the subtotal.
	TaxRate = 0.10
	// FreeShippingThreshold is the subtotal above which shipping is waived.
	FreeShippingThreshold = 100.0
	// ShippingFee is the flat fee charged at or below the threshold.
	ShippingFee = 15.0
)

var (
	ErrItemNotFound = errors.New("cart item not found")
	ErrInvalidItem  = errors.New("invalid cart item")
	ErrEmptyCart    = errors.New("cart is empty")
)

// Cart is an ordered list of line items. The zero value is an empty cart.
// Every line held by a Cart has Quantity >= 1.
type Cart struct {
	items []models.CartItem
}

// New builds a cart from stored items, dropping lines without an ID, with
// non-positive quantity or with a negative price.
func New(items []models.CartItem) *Cart {
	c := &Cart{}
	for _, it := range items {
		if validLine(it) {
			c.items = append(c.items, it)
		}
	}
	return c
}

// Validate returns ErrInvalidItem if any line would be dropped by New.
func Validate(items []models.CartItem) error {
	for _, it := range items {
		if !validLine(it) {
			return fmt.Errorf("%w: line %q", ErrInvalidItem, it.ID)
		}
	}
	return nil
}

func validLine(it models.CartItem) bool {
	return it.Quantity > 0 && it.Price >= 0 && strings.TrimSpace(it.ID) != ""
}

// Items returns a copy of the lines.
func (c *Cart) Items() []models.CartItem {
	out := make([]models.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// TotalItems returns the sum of quantities across lines.
func (c *Cart) TotalItems() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Add merges item into the cart. An existing line with the same ID gains
// item.Quantity units (1 when unset), capped at MaxQuantity when set.
func (c *Cart) Add(item models.CartItem) error {
	if strings.TrimSpace(item.ID) == "" || item.Price < 0 {
		return ErrInvalidItem
	}
	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	if i := c.index(item.ID); i >= 0 {
		c.items[i].Quantity = capQuantity(c.items[i].Quantity+qty, c.items[i].MaxQuantity)
		return nil
	}
	item.Quantity = capQuantity(qty, item.MaxQuantity)
	c.items = append(c.items, item)
	return nil
}

// UpdateQuantity sets the quantity of a line. A quantity <= 0 removes it.
func (c *Cart) UpdateQuantity(id string, quantity int) error {
	i := c.index(id)
	if i < 0 {
		return ErrItemNotFound
	}
	if quantity <= 0 {
		c.removeAt(i)
		return nil
	}
	c.items[i].Quantity = capQuantity(quantity, c.items[i].MaxQuantity)
	return nil
}

// Decrement removes one unit; removing the last unit removes the line.
func (c *Cart) Decrement(id string) error {
	i := c.index(id)
	if i < 0 {
		return ErrItemNotFound
	}
	return c.UpdateQuantity(id, c.items[i].Quantity-1)
}

// Remove deletes a line regardless of its quantity.
func (c *Cart) Remove(id string) error {
	i := c.index(id)
	if i < 0 {
		return ErrItemNotFound
	}
	c.removeAt(i)
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// Summary returns the derived totals of the current lines.
func (c *Cart) Summary() models.CartSummary {
	return Summarize(c.items)
}

func (c *Cart) index(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
}

func capQuantity(q, max int) int {
	if max > 0 && q > max {
		return max
	}
	return q
}

// Summarize computes subtotal, tax, shipping and total for items.
// total = subtotal + tax + shipping; shipping is waived iff subtotal > FreeShippingThreshold.
func Summarize(items []models.CartItem) models.CartSummary {
	var s models.CartSummary
	for _, it := range items {
		s.Subtotal += it.Price * float64(it.Quantity)
		s.ItemCount += it.Quantity
	}
	s.Tax = s.Subtotal * TaxRate
	if s.Subtotal > FreeShippingThreshold {
		s.Shipping = 0
	} else {
		s.Shipping = ShippingFee
	}
	s.Total = s.Subtotal + s.Tax + s.Shipping
	return s
}
