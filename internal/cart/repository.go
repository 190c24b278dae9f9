package cart

import "context"

// Repository persists carts.
type Repository interface {
	// Get returns the user's cart, or nil when none was created yet. Inside a
	// transaction the cart is locked until the transaction ends.
	Get(ctx context.Context, userID string) (*Cart, error)
	// Save creates or replaces the cart and its lines.
	Save(ctx context.Context, c *Cart) error
	// LineOwner returns the user whose cart holds lineID, or
	// apperr.CartLineNotFound.
	LineOwner(ctx context.Context, lineID string) (string, error)
}
