// Package order holds the order aggregate and the coordinator that turns
// purchase intent into orders against the inventory ledger.
package order

import (
	"fmt"
	"strings"
	"time"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusShipped, StatusDelivered, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: nil,
	StatusCancelled: nil,
}

// ParseStatus accepts any casing of a known status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := transitions[s]; !ok {
		return "", apperr.New(apperr.InvalidStatus, "unknown order status %q", raw)
	}
	return s, nil
}

// CanTransition reports whether the state machine allows s -> next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in s may still be cancelled.
func (s Status) Cancellable() bool {
	return s.CanTransition(StatusCancelled)
}

// Line is a frozen copy of what was bought and at which price.
type Line struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

func (l Line) Subtotal() decimal.Decimal {
	return pricing.LineTotal(l.UnitPrice, l.Quantity)
}

func (l Line) Amount() decimal.Decimal { return l.Subtotal() }

// Order is immutable once created except for Status and UpdatedAt. Total is
// recorded at creation and never recomputed.
type Order struct {
	ID              string
	Number          string
	UserID          string
	Lines           []Line
	Total           decimal.Decimal
	Status          Status
	ShippingAddress string
	PhoneNumber     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	return &cp
}

// NewNumber builds the customer-facing order number, e.g. ORD-20240131-1A2B3C4D.
func NewNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

// LineRequest is one requested (product, quantity) pair.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// PlaceOrderRequest carries the caller-supplied part of a new order.
type PlaceOrderRequest struct {
	ShippingAddress string
	PhoneNumber     string
	Lines           []LineRequest
}

// ListFilter narrows an order listing. An empty UserID lists every user.
type ListFilter struct {
	UserID string
	Status Status
}

// Page selects a 1-based page of results.
type Page struct {
	Number  int
	PerPage int
}

func (p Page) Offset() int { return (p.Number - 1) * p.PerPage }

// PageResult is one page of orders, newest first.
type PageResult struct {
	Items      []*Order
	TotalCount int
	TotalPages int
	Page       int
	PerPage    int
}

func newPageResult(items []*Order, total int, p Page) PageResult {
	pages := 0
	if p.PerPage > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	if items == nil {
		items = []*Order{}
	}
	return PageResult{Items: items, TotalCount: total, TotalPages: pages, Page: p.Number, PerPage: p.PerPage}
}
