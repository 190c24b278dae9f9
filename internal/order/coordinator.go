package order

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/cart"
	"checkoutservice/internal/identity"
	"checkoutservice/internal/inventory"
	"checkoutservice/internal/platform/observability"
	"checkoutservice/internal/platform/txn"
	"checkoutservice/internal/pricing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultOperationTimeout = 10 * time.Second
	defaultPageSize         = 20
	maxPageSize             = 100

	// maxOffset bounds (page-1)*per_page so the offset never overflows.
	maxOffset = math.MaxInt32
)

// Dependencies are the collaborators a Coordinator orchestrates.
type Dependencies struct {
	Orders Repository
	Ledger inventory.Ledger
	Prices *pricing.Snapshotter
	Users  identity.Directory
	Carts  *cart.Service
	Tx     txn.Transactor
	Events EventPublisher
	Logger observability.Logger
	Tracer observability.Tracer
}

// Coordinator owns every order mutation. Stock changes it triggers and the
// order change itself commit as one unit of work.
type Coordinator struct {
	orders Repository
	ledger inventory.Ledger
	prices *pricing.Snapshotter
	users  identity.Directory
	carts  *cart.Service
	tx     txn.Transactor
	events EventPublisher
	logger observability.Logger
	tracer observability.Tracer

	opTimeout       time.Duration
	defaultPageSize int
	maxPageSize     int
	now             func() time.Time
	newID           func() string
}

type Option func(*Coordinator)

// WithOperationTimeout bounds mutations once detached from the caller.
func WithOperationTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.opTimeout = d }
}

func WithPageSizes(defaultSize, maxSize int) Option {
	return func(c *Coordinator) {
		c.defaultPageSize = defaultSize
		c.maxPageSize = maxSize
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(deps Dependencies, opts ...Option) *Coordinator {
	c := &Coordinator{
		orders:          deps.Orders,
		ledger:          deps.Ledger,
		prices:          deps.Prices,
		users:           deps.Users,
		carts:           deps.Carts,
		tx:              deps.Tx,
		events:          deps.Events,
		logger:          deps.Logger,
		tracer:          deps.Tracer,
		opTimeout:       defaultOperationTimeout,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		now:             func() time.Time { return time.Now().UTC() },
		newID:           uuid.NewString,
	}
	if c.events == nil {
		c.events = NopPublisher{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlaceOrder reserves stock for every requested line and records a PENDING
// order with frozen prices. On any failure no stock stays reserved.
func (c *Coordinator) PlaceOrder(ctx context.Context, userID string, req PlaceOrderRequest) (placed *Order, err error) {
	ctx, cancel := c.detach(ctx)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "order.place")
	defer func() { observability.FinishSpan(span, err) }()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("order.requested_lines", len(req.Lines)),
		attribute.String("order.source", "request"),
	)

	lines, err := normalizeLines(req.Lines)
	if err != nil {
		return nil, err
	}
	if err := validateShipping(req.ShippingAddress); err != nil {
		return nil, err
	}
	if err := c.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	err = c.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := c.place(ctx, userID, req.ShippingAddress, req.PhoneNumber, lines)
		placed = o
		return err
	})
	if err != nil {
		c.logFailure("Order placement failed", err, zap.String("user_id", userID))
		return nil, err
	}

	c.announcePlaced(ctx, placed)
	span.SetAttributes(attribute.String("order.id", placed.ID), attribute.String("order.total", placed.Total.String()))
	return placed, nil
}

// PlaceOrderFromCart checks out the caller's cart. The cart is emptied in the
// same unit of work, and only once the order is stored.
func (c *Coordinator) PlaceOrderFromCart(ctx context.Context, userID, shippingAddress, phoneNumber string) (placed *Order, err error) {
	ctx, cancel := c.detach(ctx)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "order.place")
	defer func() { observability.FinishSpan(span, err) }()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("order.source", "cart"))

	if err := validateShipping(shippingAddress); err != nil {
		return nil, err
	}
	if err := c.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	err = c.carts.Checkout(ctx, userID, func(ctx context.Context, cartLines []cart.Line) error {
		if len(cartLines) == 0 {
			return apperr.New(apperr.InvalidInput, "cart is empty")
		}
		reqs := make([]LineRequest, 0, len(cartLines))
		for _, l := range cartLines {
			reqs = append(reqs, LineRequest{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		lines, err := normalizeLines(reqs)
		if err != nil {
			return err
		}
		o, err := c.place(ctx, userID, shippingAddress, phoneNumber, lines)
		placed = o
		return err
	})
	if err != nil {
		c.logFailure("Cart checkout failed", err, zap.String("user_id", userID))
		return nil, err
	}

	c.announcePlaced(ctx, placed)
	span.SetAttributes(attribute.String("order.id", placed.ID), attribute.String("order.total", placed.Total.String()))
	return placed, nil
}

// CancelOrder cancels one of the caller's orders and restores its stock.
// Orders of other users are reported as not found.
func (c *Coordinator) CancelOrder(ctx context.Context, userID, orderID string) (cancelled *Order, err error) {
	ctx, cancel := c.detach(ctx)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "order.cancel")
	defer func() { observability.FinishSpan(span, err) }()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("order.id", orderID))

	err = c.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := c.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			c.logger.Warn("Order ownership violation",
				zap.String("user_id", userID),
				zap.String("order_id", orderID),
			)
			return apperr.New(apperr.OrderNotFound, "order %s", orderID)
		}
		if err := c.cancel(ctx, o); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		c.logFailure("Order cancellation failed", err, zap.String("order_id", orderID))
		return nil, err
	}

	c.logger.Info("Order cancelled",
		zap.String("order_id", cancelled.ID),
		zap.String("user_id", userID),
	)
	c.publish(ctx, newEvent(EventOrderCancelled, cancelled, cancelled.UpdatedAt))
	return cancelled, nil
}

// UpdateStatus is the privileged status override. Moving an order into
// CANCELLED restores its stock exactly like CancelOrder. Setting the current
// status again is a no-op.
func (c *Coordinator) UpdateStatus(ctx context.Context, orderID, rawStatus string) (updated *Order, err error) {
	ctx, cancel := c.detach(ctx)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "order.update_status")
	defer func() { observability.FinishSpan(span, err) }()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.requested_status", rawStatus))

	next, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	var changed bool
	err = c.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := c.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		updated = o
		if o.Status == next {
			return nil
		}
		changed = true

		if next == StatusCancelled {
			return c.cancel(ctx, o)
		}
		if !o.Status.CanTransition(next) {
			return apperr.New(apperr.IllegalTransition, "order %s cannot move from %s to %s", o.ID, o.Status, next)
		}

		now := c.now()
		ok, err := c.orders.TransitionStatus(ctx, o.ID, o.Status, next, now)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if !ok {
			return apperr.New(apperr.Conflict, "order %s was modified concurrently", o.ID)
		}
		o.Status = next
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		c.logFailure("Order status update failed", err, zap.String("order_id", orderID), zap.String("status", string(next)))
		return nil, err
	}

	if changed {
		c.logger.Info("Order status updated",
			zap.String("order_id", updated.ID),
			zap.String("status", string(updated.Status)),
		)
		eventType := EventOrderStatusChanged
		if updated.Status == StatusCancelled {
			eventType = EventOrderCancelled
		}
		c.publish(ctx, newEvent(eventType, updated, updated.UpdatedAt))
	}
	return updated, nil
}

// GetOrder returns an order visible to caller.
func (c *Coordinator) GetOrder(ctx context.Context, caller identity.Caller, orderID string) (*Order, error) {
	o, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && o.UserID != caller.UserID {
		return nil, apperr.New(apperr.OrderNotFound, "order %s", orderID)
	}
	return o, nil
}

// ListOrders pages through orders newest first. Non-admin callers only ever
// see their own orders whatever the filter says.
func (c *Coordinator) ListOrders(ctx context.Context, caller identity.Caller, filter ListFilter, page Page) (PageResult, error) {
	if !caller.IsAdmin() {
		filter.UserID = caller.UserID
	}
	page, err := c.normalizePage(page)
	if err != nil {
		return PageResult{}, err
	}

	items, total, err := c.orders.List(ctx, filter, page)
	if err != nil {
		return PageResult{}, fmt.Errorf("failed to list orders: %w", err)
	}
	return newPageResult(items, total, page), nil
}

// place captures prices, reserves stock and stores the order. It must run
// inside a unit of work; on failure it releases whatever it reserved.
func (c *Coordinator) place(ctx context.Context, userID, address, phone string, lines []LineRequest) (*Order, error) {
	snapshots := make(map[string]pricing.Snapshot, len(lines))
	for _, l := range lines {
		s, err := c.prices.Capture(ctx, l.ProductID)
		if err != nil {
			return nil, err
		}
		snapshots[l.ProductID] = s
	}

	// Product id order keeps row locks acquired in the same order across
	// concurrent checkouts and cancellations.
	byProduct := slices.Clone(lines)
	slices.SortFunc(byProduct, func(a, b LineRequest) int { return strings.Compare(a.ProductID, b.ProductID) })

	reserved := make([]LineRequest, 0, len(lines))
	for _, l := range byProduct {
		if err := c.ledger.Reserve(ctx, l.ProductID, l.Quantity); err != nil {
			c.compensate(ctx, reserved)
			return nil, err
		}
		reserved = append(reserved, l)
	}

	now := c.now()
	o := &Order{
		ID:              c.newID(),
		Number:          NewNumber(now),
		UserID:          userID,
		Lines:           make([]Line, 0, len(lines)),
		Status:          StatusPending,
		ShippingAddress: strings.TrimSpace(address),
		PhoneNumber:     strings.TrimSpace(phone),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, l := range lines {
		s := snapshots[l.ProductID]
		o.Lines = append(o.Lines, Line{
			ProductID:   s.ProductID,
			ProductName: s.Name,
			Quantity:    l.Quantity,
			UnitPrice:   s.UnitPrice,
		})
	}
	o.Total = pricing.Total(o.Lines)

	if err := c.orders.Create(ctx, o); err != nil {
		c.compensate(ctx, reserved)
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	return o, nil
}

// compensate releases reservations taken earlier in the same call. A
// transactional unit of work undoes them on rollback, so there is nothing to
// release by hand.
func (c *Coordinator) compensate(ctx context.Context, reserved []LineRequest) {
	if txn.RollsBack(c.tx) {
		return
	}
	for _, l := range reserved {
		if err := c.ledger.Release(ctx, l.ProductID, l.Quantity); err != nil {
			c.logger.Error("Compensating release failed",
				zap.String("product_id", l.ProductID),
				zap.Int("quantity", l.Quantity),
				zap.Error(err),
			)
		}
	}
	if len(reserved) > 0 {
		c.logger.Info("Rolled back partial reservation", zap.Int("lines", len(reserved)))
	}
}

// cancel moves o to CANCELLED and releases every line. The status switch is
// a compare-and-set so concurrent cancellations release stock only once.
func (c *Coordinator) cancel(ctx context.Context, o *Order) error {
	if !o.Status.Cancellable() {
		return apperr.New(apperr.OrderCannotBeCancelled, "order %s is %s", o.ID, o.Status)
	}

	now := c.now()
	ok, err := c.orders.TransitionStatus(ctx, o.ID, o.Status, StatusCancelled, now)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if !ok {
		// Only PENDING is cancellable and nothing re-enters it.
		return apperr.New(apperr.OrderCannotBeCancelled, "order %s is no longer %s", o.ID, o.Status)
	}

	// Same lock order as place.
	byProduct := slices.Clone(o.Lines)
	slices.SortFunc(byProduct, func(a, b Line) int { return strings.Compare(a.ProductID, b.ProductID) })
	for _, l := range byProduct {
		if err := c.ledger.Release(ctx, l.ProductID, l.Quantity); err != nil {
			return fmt.Errorf("failed to restore stock for order %s: %w", o.ID, err)
		}
	}
	o.Status = StatusCancelled
	o.UpdatedAt = now
	return nil
}

func (c *Coordinator) announcePlaced(ctx context.Context, o *Order) {
	c.logger.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.String("user_id", o.UserID),
		zap.Int("lines", len(o.Lines)),
		zap.String("total", o.Total.StringFixed(2)),
	)
	c.publish(ctx, newEvent(EventOrderPlaced, o, o.CreatedAt))
}

// publish never fails the caller: the change it announces is already committed.
func (c *Coordinator) publish(ctx context.Context, event Event) {
	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.Warn("Order event not published",
			zap.String("order_id", event.OrderID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("error_kind", apperr.KindOf(err).String()), zap.Error(err))
	if apperr.IsExpected(err) {
		c.logger.Info(msg, fields...)
		return
	}
	c.logger.Error(msg, fields...)
}

func (c *Coordinator) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.opTimeout)
}

func (c *Coordinator) requireUser(ctx context.Context, userID string) error {
	ok, err := c.users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !ok {
		return apperr.New(apperr.UserNotFound, "user %s", userID)
	}
	return nil
}

func (c *Coordinator) normalizePage(p Page) (Page, error) {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = c.defaultPageSize
	}
	if p.PerPage > c.maxPageSize {
		p.PerPage = c.maxPageSize
	}
	if p.Number-1 > maxOffset/p.PerPage {
		return p, apperr.New(apperr.InvalidInput, "page %d is out of range", p.Number)
	}
	return p, nil
}

// normalizeLines validates requested lines and merges repeated products,
// keeping the position of each product's first occurrence.
func normalizeLines(lines []LineRequest) ([]LineRequest, error) {
	if len(lines) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "order must contain at least one line")
	}

	merged := make([]LineRequest, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		productID := strings.TrimSpace(l.ProductID)
		if productID == "" {
			return nil, apperr.New(apperr.InvalidInput, "product id is required")
		}
		if err := inventory.ValidateQuantity(productID, l.Quantity); err != nil {
			return nil, err
		}
		if i, ok := index[productID]; ok {
			total, err := inventory.MergeQuantity(productID, merged[i].Quantity, l.Quantity)
			if err != nil {
				return nil, err
			}
			merged[i].Quantity = total
			continue
		}
		index[productID] = len(merged)
		merged = append(merged, LineRequest{ProductID: productID, Quantity: l.Quantity})
	}
	return merged, nil
}

func validateShipping(address string) error {
	if strings.TrimSpace(address) == "" {
		return apperr.New(apperr.InvalidInput, "shipping address is required")
	}
	return nil
}
