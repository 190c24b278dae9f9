package cart

import (
	"context"
	"time"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/catalog"
	"checkoutservice/internal/identity"
	"checkoutservice/internal/inventory"
	"checkoutservice/internal/platform/keylock"
	"checkoutservice/internal/platform/observability"
	"checkoutservice/internal/platform/txn"
	"checkoutservice/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SummaryLine is a cart line joined with the live catalog entry.
type SummaryLine struct {
	LineID      string
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Stock       int
	Quantity    int
	Subtotal    decimal.Decimal
	AddedAt     time.Time
}

func (l SummaryLine) Amount() decimal.Decimal { return l.Subtotal }

// Summary is a live projection: prices and totals are recomputed on every
// call, unlike an order's frozen total.
type Summary struct {
	UserID        string
	Lines         []SummaryLine
	TotalQuantity int
	TotalPrice    decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Service implements cart mutations. It only reads stock for soft checks;
// reservation happens at checkout.
type Service struct {
	repo    Repository
	ledger  inventory.Ledger
	catalog catalog.Catalog
	users   identity.Directory
	tx      txn.Transactor
	locks   *keylock.Map
	logger  observability.Logger
	tracer  observability.Tracer

	now   func() time.Time
	newID func() string
}

// Option customises a Service.
type Option func(*Service)

// WithIDs overrides the line id generator.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a cart service with explicit dependencies.
func NewService(
	repo Repository,
	ledger inventory.Ledger,
	cat catalog.Catalog,
	users identity.Directory,
	tx txn.Transactor,
	logger observability.Logger,
	tracer observability.Tracer,
	opts ...Option,
) *Service {
	s := &Service{
		repo:    repo,
		ledger:  ledger,
		catalog: cat,
		users:   users,
		tx:      tx,
		locks:   keylock.New(),
		logger:  logger,
		tracer:  tracer,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddLine adds quantity of productID, merging with an existing line. The
// merged quantity must be covered by current stock or the cart is left as is.
func (s *Service) AddLine(ctx context.Context, userID, productID string, quantity int) (line Line, err error) {
	ctx, span := s.tracer.Start(ctx, "cart.add_line")
	defer func() { observability.FinishSpan(span, err) }()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
		attribute.Int("cart.quantity", quantity),
	)

	if err := inventory.ValidateQuantity(productID, quantity); err != nil {
		return Line{}, err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return Line{}, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.loadOrNew(ctx, userID)
		if err != nil {
			return err
		}

		merged, err := inventory.MergeQuantity(productID, c.QuantityOf(productID), quantity)
		if err != nil {
			return err
		}
		if err := s.checkAvailable(ctx, productID, merged); err != nil {
			return err
		}

		line = c.Add(s.newID(), productID, quantity, s.now())
		return s.repo.Save(ctx, c)
	})
	if err != nil {
		return Line{}, err
	}

	s.logger.Info("Cart line added",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("quantity", line.Quantity),
	)
	return line, nil
}

// UpdateLine replaces the quantity of one of the caller's lines.
func (s *Service) UpdateLine(ctx context.Context, userID, lineID string, quantity int) (line Line, err error) {
	ctx, span := s.tracer.Start(ctx, "cart.update_line")
	defer func() { observability.FinishSpan(span, err) }()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("cart.line_id", lineID),
		attribute.Int("cart.quantity", quantity),
	)

	if quantity <= 0 || quantity > inventory.MaxQuantity {
		return Line{}, apperr.New(apperr.InvalidQuantity, "quantity must be between 1 and %d, got %d", inventory.MaxQuantity, quantity)
	}
	if err := s.requireOwner(ctx, userID, lineID); err != nil {
		return Line{}, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.Get(ctx, userID)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.New(apperr.CartLineNotFound, "cart line %s", lineID)
		}
		current, ok := c.Line(lineID)
		if !ok {
			return apperr.New(apperr.CartLineNotFound, "cart line %s", lineID)
		}
		if err := s.checkAvailable(ctx, current.ProductID, quantity); err != nil {
			return err
		}

		line, _ = c.SetQuantity(lineID, quantity, s.now())
		return s.repo.Save(ctx, c)
	})
	if err != nil {
		return Line{}, err
	}
	return line, nil
}

// RemoveLine deletes one of the caller's lines. Removing a line that does not
// exist is a successful no-op.
func (s *Service) RemoveLine(ctx context.Context, userID, lineID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "cart.remove_line")
	defer func() { observability.FinishSpan(span, err) }()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("cart.line_id", lineID))

	if err := s.requireOwner(ctx, userID, lineID); err != nil {
		if apperr.Is(err, apperr.CartLineNotFound) {
			return nil
		}
		return err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.Get(ctx, userID)
		if err != nil || c == nil {
			return err
		}
		if !c.Remove(lineID, s.now()) {
			return nil
		}
		return s.repo.Save(ctx, c)
	})
}

// Clear empties the caller's cart. It is idempotent.
func (s *Service) Clear(ctx context.Context, userID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.clearLocked(ctx, userID)
	})
}

// Summary returns the caller's lines with live prices and totals.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	c, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	if c == nil {
		now := s.now()
		return Summary{UserID: userID, Lines: []SummaryLine{}, TotalPrice: decimal.Zero, CreatedAt: now, UpdatedAt: now}, nil
	}

	sum := Summary{
		UserID:    userID,
		Lines:     make([]SummaryLine, 0, len(c.Lines)),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for _, l := range c.Lines {
		p, err := s.catalog.GetProduct(ctx, l.ProductID)
		if err != nil {
			return Summary{}, err
		}
		sum.Lines = append(sum.Lines, SummaryLine{
			LineID:      l.ID,
			ProductID:   l.ProductID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Stock:       p.Stock,
			Quantity:    l.Quantity,
			Subtotal:    pricing.LineTotal(p.Price, l.Quantity),
			AddedAt:     l.AddedAt,
		})
		sum.TotalQuantity += l.Quantity
	}
	sum.TotalPrice = pricing.Total(sum.Lines)
	return sum, nil
}

// ItemCount returns the total quantity in the caller's cart.
func (s *Service) ItemCount(ctx context.Context, userID string) (int, error) {
	c, err := s.repo.Get(ctx, userID)
	if err != nil || c == nil {
		return 0, err
	}
	return c.TotalQuantity(), nil
}

// Checkout hands the caller's current lines to fn while holding the cart, and
// empties the cart only if fn succeeds. fn runs inside the same unit of work.
func (s *Service) Checkout(ctx context.Context, userID string, fn func(ctx context.Context, lines []Line) error) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.Get(ctx, userID)
		if err != nil {
			return err
		}
		var lines []Line
		if c != nil {
			lines = append(lines, c.Lines...)
		}
		if err := fn(ctx, lines); err != nil {
			return err
		}
		return s.clearLocked(ctx, userID)
	})
}

func (s *Service) clearLocked(ctx context.Context, userID string) error {
	c, err := s.repo.Get(ctx, userID)
	if err != nil || c == nil || len(c.Lines) == 0 {
		return err
	}
	c.Clear(s.now())
	return s.repo.Save(ctx, c)
}

func (s *Service) loadOrNew(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = New(userID, s.now())
	}
	return c, nil
}

func (s *Service) checkAvailable(ctx context.Context, productID string, quantity int) error {
	available, err := s.ledger.Available(ctx, productID)
	if err != nil {
		return err
	}
	if available < quantity {
		return inventory.Insufficient(productID, quantity, available)
	}
	return nil
}

func (s *Service) requireUser(ctx context.Context, userID string) error {
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.UserNotFound, "user %s", userID)
	}
	return nil
}

func (s *Service) requireOwner(ctx context.Context, userID, lineID string) error {
	owner, err := s.repo.LineOwner(ctx, lineID)
	if err != nil {
		return err
	}
	if owner != userID {
		s.logger.Warn("Cart line ownership violation",
			zap.String("user_id", userID),
			zap.String("line_id", lineID),
			zap.String("owner_id", owner),
		)
		return apperr.New(apperr.Forbidden, "cart line %s does not belong to user %s", lineID, userID)
	}
	return nil
}
