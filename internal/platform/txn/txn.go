// Package txn defines the unit-of-work boundary used by the checkout core.
package txn

import "context"

// Transactor runs fn as one all-or-nothing unit. Adapters carry the active
// transaction in the context handed to fn; nested calls join the outer unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Passthrough runs fn directly. It backs the in-memory store, where each
// adapter call is already atomic and nothing survives a restart anyway.
type Passthrough struct{}

func (Passthrough) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// RollsBack reports whether t undoes every write of a failed unit. Callers
// use it to skip hand-written compensation that a rollback already covers.
func RollsBack(t Transactor) bool {
	r, ok := t.(interface{ RollsBack() bool })
	return ok && r.RollsBack()
}
