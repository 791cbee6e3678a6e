package cart

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/microstore/internal/models"
)

// DefaultCheckoutDelay mirrors the demo's simulated processing time.
const DefaultCheckoutDelay = 2 * time.Second

// Checkout simulates order processing: it waits delay (or until ctx is done)
// and returns a receipt. No payment is taken. Lines a Cart would not hold are
// rejected with ErrInvalidItem.
func Checkout(ctx context.Context, items []models.CartItem, delay time.Duration) (models.Receipt, error) {
	if len(items) == 0 {
		return models.Receipt{}, ErrEmptyCart
	}
	if err := Validate(items); err != nil {
		return models.Receipt{}, err
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.Receipt{}, ctx.Err()
		case <-timer.C:
		}
	}
	snapshot := make([]models.CartItem, len(items))
	copy(snapshot, items)
	return models.Receipt{
		OrderID:   uuid.New().String(),
		Items:     snapshot,
		Summary:   Summarize(snapshot),
		CreatedAt: time.Now().UTC(),
	}, nil
}
