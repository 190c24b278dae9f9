// Package inventory owns the write path of the per-product stock counter.
package inventory

import (
	"context"
	"math"

	"checkoutservice/internal/apperr"
)

// Ledger is the only component allowed to change stock.
//
// Reserve is a single atomic check-and-decrement: concurrent reservations of
// one product are serialized and can never drive stock below zero. Release is
// an unconditional increment. Both fail with apperr.ProductNotFound for
// unknown products.
type Ledger interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
	// Available is a non-reserving read used for soft availability checks.
	Available(ctx context.Context, productID string) (int, error)
}

// MaxQuantity is the largest quantity a single line may hold. It matches the
// INTEGER columns that store quantities and stock.
const MaxQuantity = math.MaxInt32

// ValidateQuantity rejects quantities outside 1..MaxQuantity before any store
// access.
func ValidateQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		return apperr.New(apperr.InvalidQuantity, "quantity for product %s must be positive, got %d", productID, quantity)
	}
	if quantity > MaxQuantity {
		return apperr.New(apperr.InvalidQuantity, "quantity for product %s must not exceed %d, got %d", productID, MaxQuantity, quantity)
	}
	return nil
}

// MergeQuantity adds extra to a quantity already held for productID. Both
// must be valid quantities (current may be 0) and the sum may not exceed
// MaxQuantity.
func MergeQuantity(productID string, current, extra int) (int, error) {
	if err := ValidateQuantity(productID, extra); err != nil {
		return 0, err
	}
	if current < 0 || extra > MaxQuantity-current {
		return 0, apperr.New(apperr.InvalidQuantity, "quantity for product %s must not exceed %d, have %d, adding %d", productID, MaxQuantity, current, extra)
	}
	return current + extra, nil
}

// Insufficient builds the rejection returned when stock cannot cover quantity.
func Insufficient(productID string, requested, available int) error {
	return apperr.New(apperr.InsufficientStock, "product %s: requested %d, available %d", productID, requested, available)
}

// NotFound builds the rejection for an unknown product.
func NotFound(productID string) error {
	return apperr.New(apperr.ProductNotFound, "product %s", productID)
}
