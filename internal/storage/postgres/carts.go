package postgres

import (
	"context"
	"errors"
	"fmt"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/cart"
	pg "checkoutservice/internal/platform/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CartRepo struct {
	pool *pgxpool.Pool
}

func NewCartRepo(db *pg.DB) *CartRepo {
	return &CartRepo{pool: db.Pool()}
}

// Get locks the cart row for the rest of the surrounding transaction.
func (r *CartRepo) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	q := pg.Conn(ctx, r.pool)

	c := &cart.Cart{UserID: userID, Lines: []cart.Line{}}
	err := q.QueryRow(ctx,
		`SELECT created_at, updated_at FROM carts WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart of %s: %w", userID, err)
	}

	rows, err := q.Query(ctx,
		`SELECT id::text, product_id, quantity, added_at FROM cart_lines WHERE user_id = $1 ORDER BY seq`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart lines of %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l cart.Line
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &l.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		c.Lines = append(c.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart lines: %w", err)
	}
	return c, nil
}

// Save rewrites the cart's lines in their current order. Callers run it
// inside a transaction.
func (r *CartRepo) Save(ctx context.Context, c *cart.Cart) error {
	q := pg.Conn(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO carts (user_id, created_at, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		c.UserID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cart of %s: %w", c.UserID, err)
	}

	if _, err := q.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, c.UserID); err != nil {
		return fmt.Errorf("failed to reset cart lines of %s: %w", c.UserID, err)
	}

	for _, l := range c.Lines {
		_, err := q.Exec(ctx,
			`INSERT INTO cart_lines (id, user_id, product_id, quantity, added_at) VALUES ($1, $2, $3, $4, $5)`,
			l.ID, c.UserID, l.ProductID, l.Quantity, l.AddedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cart line %s: %w", l.ID, err)
		}
	}
	return nil
}

func (r *CartRepo) LineOwner(ctx context.Context, lineID string) (string, error) {
	if _, err := uuid.Parse(lineID); err != nil {
		return "", apperr.New(apperr.CartLineNotFound, "cart line %s", lineID)
	}

	var owner string
	err := pg.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT user_id FROM cart_lines WHERE id = $1`, lineID,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.New(apperr.CartLineNotFound, "cart line %s", lineID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up cart line %s: %w", lineID, err)
	}
	return owner, nil
}
