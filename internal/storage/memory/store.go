// Package memory is a process-local implementation of every storage port.
// It backs the test suites and local runs without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/cart"
	"checkoutservice/internal/catalog"
	"checkoutservice/internal/inventory"
	"checkoutservice/internal/order"
	"checkoutservice/internal/platform/keylock"
)

// Store keeps products, users, carts and orders in maps. The map structure is
// guarded by mu; a product's fields are guarded by its key in stockLocks, so
// stock movements on different products never wait for each other.
type Store struct {
	mu         sync.RWMutex
	products   map[string]*catalog.Product
	users      map[string]struct{}
	carts      map[string]*cart.Cart
	lineOwners map[string]string
	orders     map[string]*order.Order

	stockLocks *keylock.Map
}

func NewStore() *Store {
	return &Store{
		products:   make(map[string]*catalog.Product),
		users:      make(map[string]struct{}),
		carts:      make(map[string]*cart.Cart),
		lineOwners: make(map[string]string),
		orders:     make(map[string]*order.Order),
		stockLocks: keylock.New(),
	}
}

// PutUser registers a known user id.
func (s *Store) PutUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
}

// PutProduct creates or overwrites a product, stock included.
func (s *Store) PutProduct(p catalog.Product) {
	unlock := s.stockLocks.Lock(p.ID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.products[p.ID]; ok {
		*existing = p
		return
	}
	cp := p
	s.products[p.ID] = &cp
}

func (s *Store) Exists(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	p, ok := s.product(id)
	if !ok {
		return catalog.Product{}, inventory.NotFound(id)
	}
	unlock := s.stockLocks.Lock(id)
	defer unlock()
	return *p, nil
}

func (s *Store) Reserve(_ context.Context, productID string, quantity int) error {
	if err := inventory.ValidateQuantity(productID, quantity); err != nil {
		return err
	}
	p, ok := s.product(productID)
	if !ok {
		return inventory.NotFound(productID)
	}

	unlock := s.stockLocks.Lock(productID)
	defer unlock()
	if p.Stock < quantity {
		return inventory.Insufficient(productID, quantity, p.Stock)
	}
	p.Stock -= quantity
	return nil
}

func (s *Store) Release(_ context.Context, productID string, quantity int) error {
	if err := inventory.ValidateQuantity(productID, quantity); err != nil {
		return err
	}
	p, ok := s.product(productID)
	if !ok {
		return inventory.NotFound(productID)
	}

	unlock := s.stockLocks.Lock(productID)
	defer unlock()
	p.Stock += quantity
	return nil
}

func (s *Store) Available(_ context.Context, productID string) (int, error) {
	p, ok := s.product(productID)
	if !ok {
		return 0, inventory.NotFound(productID)
	}
	unlock := s.stockLocks.Lock(productID)
	defer unlock()
	return p.Stock, nil
}

func (s *Store) product(id string) (*catalog.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// Carts is the cart.Repository view of the store.
func (s *Store) Carts() cart.Repository { return cartRepo{s} }

// Orders is the order.Repository view of the store.
func (s *Store) Orders() order.Repository { return orderRepo{s} }

type cartRepo struct{ s *Store }

func (r cartRepo) Get(_ context.Context, userID string) (*cart.Cart, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.carts[userID]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (r cartRepo) Save(_ context.Context, c *cart.Cart) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if prev, ok := r.s.carts[c.UserID]; ok {
		for _, l := range prev.Lines {
			delete(r.s.lineOwners, l.ID)
		}
	}
	for _, l := range c.Lines {
		r.s.lineOwners[l.ID] = c.UserID
	}
	r.s.carts[c.UserID] = c.Clone()
	return nil
}

func (r cartRepo) LineOwner(_ context.Context, lineID string) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	owner, ok := r.s.lineOwners[lineID]
	if !ok {
		return "", apperr.New(apperr.CartLineNotFound, "cart line %s", lineID)
	}
	return owner, nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, o *order.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[o.ID]; ok {
		return apperr.New(apperr.Conflict, "order %s already exists", o.ID)
	}
	r.s.orders[o.ID] = o.Clone()
	return nil
}

func (r orderRepo) Get(_ context.Context, orderID string) (*order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return nil, apperr.New(apperr.OrderNotFound, "order %s", orderID)
	}
	return o.Clone(), nil
}

func (r orderRepo) List(_ context.Context, filter order.ListFilter, page order.Page) ([]*order.Order, int, error) {
	r.s.mu.RLock()
	matched := make([]*order.Order, 0)
	for _, o := range r.s.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		matched = append(matched, o.Clone())
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.PerPage, total)
	return matched[start:end], total, nil
}

func (r orderRepo) TransitionStatus(_ context.Context, orderID string, from, to order.Status, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return false, apperr.New(apperr.OrderNotFound, "order %s", orderID)
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at
	return true, nil
}
