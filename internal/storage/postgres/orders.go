package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/order"
	pg "checkoutservice/internal/platform/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const orderColumns = `id::text, order_number, user_id, status, total::text, shipping_address, phone_number, created_at, updated_at`

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(db *pg.DB) *OrderRepo {
	return &OrderRepo{pool: db.Pool()}
}

func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	q := pg.Conn(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO orders (id, order_number, user_id, status, total, shipping_address, phone_number, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)`,
		o.ID, o.Number, o.UserID, string(o.Status), o.Total.String(),
		o.ShippingAddress, o.PhoneNumber, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
	}

	for i, l := range o.Lines {
		_, err := q.Exec(ctx,
			`INSERT INTO order_lines (order_id, line_no, product_id, product_name, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5, $6::numeric)`,
			o.ID, i+1, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert line %d of order %s: %w", i+1, o.ID, err)
		}
	}
	return nil
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (*order.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, apperr.New(apperr.OrderNotFound, "order %s", orderID)
	}
	q := pg.Conn(ctx, r.pool)

	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.OrderNotFound, "order %s", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}

	if err := r.attachLines(ctx, q, []*order.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepo) List(ctx context.Context, filter order.ListFilter, page order.Page) ([]*order.Order, int, error) {
	q := pg.Conn(ctx, r.pool)
	const where = `WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)`

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM orders `+where, filter.UserID, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+` ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		filter.UserID, string(filter.Status), page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]*order.Order, 0, page.PerPage)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate orders: %w", err)
	}

	if err := r.attachLines(ctx, q, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepo) TransitionStatus(ctx context.Context, orderID string, from, to order.Status, at time.Time) (bool, error) {
	q := pg.Conn(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		orderID, string(from), string(to), at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update status of order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to look up order %s: %w", orderID, err)
	}
	if !exists {
		return false, apperr.New(apperr.OrderNotFound, "order %s", orderID)
	}
	return false, nil
}

func (r *OrderRepo) attachLines(ctx context.Context, q pg.Querier, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*order.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := q.Query(ctx,
		`SELECT order_id::text, product_id, product_name, quantity, unit_price::text
		 FROM order_lines WHERE order_id::text = ANY($1) ORDER BY order_id, line_no`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("failed to get order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID, price string
			l              order.Line
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.ProductName, &l.Quantity, &price); err != nil {
			return fmt.Errorf("failed to scan order line: %w", err)
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("failed to parse unit price of order %s: %w", orderID, err)
		}
		if o, ok := byID[orderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o      order.Order
		status string
		total  string
	)
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &status, &total,
		&o.ShippingAddress, &o.PhoneNumber, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("failed to parse total of order %s: %w", o.ID, err)
	}
	o.Lines = []order.Line{}
	return &o, nil
}
