package postgres

import (
	"context"
	"errors"
	"fmt"

	"checkoutservice/internal/inventory"
	pg "checkoutservice/internal/platform/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger moves stock with single conditional statements. The row lock taken
// by UPDATE serializes concurrent reservations of one product; the CHECK
// constraint on products.stock backs the same invariant.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(db *pg.DB) *Ledger {
	return &Ledger{pool: db.Pool()}
}

func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	if err := inventory.ValidateQuantity(productID, quantity); err != nil {
		return err
	}

	q := pg.Conn(ctx, l.pool)
	tag, err := q.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1 AND stock >= $2`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to reserve stock for %s: %w", productID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: either the product is unknown or stock is short.
	stock, err := l.stock(ctx, q, productID)
	if err != nil {
		return err
	}
	return inventory.Insufficient(productID, quantity, stock)
}

func (l *Ledger) Release(ctx context.Context, productID string, quantity int) error {
	if err := inventory.ValidateQuantity(productID, quantity); err != nil {
		return err
	}

	tag, err := pg.Conn(ctx, l.pool).Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to release stock for %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.NotFound(productID)
	}
	return nil
}

func (l *Ledger) Available(ctx context.Context, productID string) (int, error) {
	return l.stock(ctx, pg.Conn(ctx, l.pool), productID)
}

func (l *Ledger) stock(ctx context.Context, q pg.Querier, productID string) (int, error) {
	var stock int
	err := q.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, inventory.NotFound(productID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read stock for %s: %w", productID, err)
	}
	return stock, nil
}
