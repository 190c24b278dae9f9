// Package apperr defines the error kinds the checkout core returns to its callers.
//
// Expected business failures carry a Kind so that callers branch on it instead of
// matching messages. Anything without a Kind is an infrastructure failure.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error returned by the core.
type Kind int

const (
	Internal Kind = iota
	ProductNotFound
	OrderNotFound
	CartLineNotFound
	UserNotFound
	InsufficientStock
	Forbidden
	OrderCannotBeCancelled
	IllegalTransition
	InvalidStatus
	InvalidQuantity
	InvalidInput
	Conflict
	Unauthorized
)

var kindNames = map[Kind]string{
	Internal:               "internal",
	ProductNotFound:        "product_not_found",
	OrderNotFound:          "order_not_found",
	CartLineNotFound:       "cart_line_not_found",
	UserNotFound:           "user_not_found",
	InsufficientStock:      "insufficient_stock",
	Forbidden:              "forbidden",
	OrderCannotBeCancelled: "order_cannot_be_cancelled",
	IllegalTransition:      "illegal_transition",
	InvalidStatus:          "invalid_status",
	InvalidQuantity:        "invalid_quantity",
	InvalidInput:           "invalid_input",
	Conflict:               "conflict",
	Unauthorized:           "unauthorized",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is an expected, caller-recoverable failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New returns an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind that keeps err in its chain.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, &Error{Kind: k}) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsNotFound reports whether err belongs to the not-found family.
func IsNotFound(err error) bool {
	switch KindOf(err) {
	case ProductNotFound, OrderNotFound, CartLineNotFound, UserNotFound:
		return err != nil
	}
	return false
}

// IsExpected reports whether err is a business rejection rather than an
// infrastructure failure.
func IsExpected(err error) bool {
	return err != nil && KindOf(err) != Internal
}
