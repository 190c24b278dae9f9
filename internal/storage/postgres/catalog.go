// Package postgres implements the storage ports on the checkout schema.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"checkoutservice/internal/catalog"
	"checkoutservice/internal/inventory"
	pg "checkoutservice/internal/platform/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CatalogRepo reads products. Prices travel as text so NUMERIC values reach
// decimal.Decimal without a float in between.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(db *pg.DB) *CatalogRepo {
	return &CatalogRepo{pool: db.Pool()}
}

func (r *CatalogRepo) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	var (
		p     catalog.Product
		price string
	)
	err := pg.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, price::text, stock FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &price, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, inventory.NotFound(id)
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("failed to get product %s: %w", id, err)
	}

	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("failed to parse price of product %s: %w", id, err)
	}
	return p, nil
}

// UserDirectory answers identity lookups from the users table.
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(db *pg.DB) *UserDirectory {
	return &UserDirectory{pool: db.Pool()}
}

func (d *UserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := pg.Conn(ctx, d.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up user %s: %w", userID, err)
	}
	return exists, nil
}
