package order

import (
	"context"
	"time"
)

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// Get fails with apperr.OrderNotFound for unknown ids.
	Get(ctx context.Context, orderID string) (*Order, error)
	// List returns one page ordered by CreatedAt descending and the total
	// number of orders matching filter.
	List(ctx context.Context, filter ListFilter, page Page) ([]*Order, int, error)
	// TransitionStatus sets the status to `to` only if it is currently
	// `from`, and reports whether it did.
	TransitionStatus(ctx context.Context, orderID string, from, to Status, at time.Time) (bool, error)
}
