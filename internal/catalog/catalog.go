// Package catalog is the read side of the product catalog the core depends on.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is owned by the catalog. Stock is the counter the inventory ledger
// mutates; the catalog itself never writes it.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}

// Catalog resolves products. Unknown ids fail with apperr.ProductNotFound.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (Product, error)
}
