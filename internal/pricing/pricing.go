// Package pricing captures product prices at the moment an order line is created.
package pricing

import (
	"context"

	"checkoutservice/internal/catalog"

	"github.com/shopspring/decimal"
)

// Snapshot is a copy of a product's name and price. Orders keep snapshots so
// later catalog edits never re-price history.
type Snapshot struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
}

// LineTotal is quantity × unitPrice.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Snapshotter reads current prices from the catalog.
type Snapshotter struct {
	catalog catalog.Catalog
}

func NewSnapshotter(c catalog.Catalog) *Snapshotter {
	return &Snapshotter{catalog: c}
}

// Capture resolves productID to its current name and price.
func (s *Snapshotter) Capture(ctx context.Context, productID string) (Snapshot, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price}, nil
}

// Priced pairs a quantity with the price it is charged at.
type Priced interface {
	Amount() decimal.Decimal
}

// Total sums the amounts of items.
func Total[T Priced](items []T) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount())
	}
	return total
}
