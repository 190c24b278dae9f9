// Package cart holds per-user carts: the purchase intent that checkout turns
// into an order.
package cart

import (
	"time"
)

// Line is one product in a cart. A cart holds at most one line per product.
type Line struct {
	ID        string
	ProductID string
	Quantity  int
	AddedAt   time.Time
}

// Cart belongs to exactly one user. It is created on the first mutation and
// afterwards only emptied, never deleted. Lines keep insertion order.
type Cart struct {
	UserID    string
	Lines     []Line
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(userID string, now time.Time) *Cart {
	return &Cart{
		UserID:    userID,
		Lines:     []Line{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// QuantityOf returns the quantity already held for productID.
func (c *Cart) QuantityOf(productID string) int {
	if i := c.indexOfProduct(productID); i >= 0 {
		return c.Lines[i].Quantity
	}
	return 0
}

// Line returns the line with the given id.
func (c *Cart) Line(lineID string) (Line, bool) {
	if i := c.indexOfLine(lineID); i >= 0 {
		return c.Lines[i], true
	}
	return Line{}, false
}

// Add merges quantity into the line for productID, creating the line with
// newLineID when the product is not in the cart yet.
func (c *Cart) Add(newLineID, productID string, quantity int, now time.Time) Line {
	c.UpdatedAt = now
	if i := c.indexOfProduct(productID); i >= 0 {
		c.Lines[i].Quantity += quantity
		return c.Lines[i]
	}
	line := Line{ID: newLineID, ProductID: productID, Quantity: quantity, AddedAt: now}
	c.Lines = append(c.Lines, line)
	return line
}

// SetQuantity replaces the quantity of an existing line.
func (c *Cart) SetQuantity(lineID string, quantity int, now time.Time) (Line, bool) {
	i := c.indexOfLine(lineID)
	if i < 0 {
		return Line{}, false
	}
	c.Lines[i].Quantity = quantity
	c.UpdatedAt = now
	return c.Lines[i], true
}

// Remove drops a line and reports whether it was present.
func (c *Cart) Remove(lineID string, now time.Time) bool {
	i := c.indexOfLine(lineID)
	if i < 0 {
		return false
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	c.UpdatedAt = now
	return true
}

// Clear empties the cart.
func (c *Cart) Clear(now time.Time) {
	c.Lines = []Line{}
	c.UpdatedAt = now
}

// TotalQuantity sums the quantities of all lines.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Lines = append([]Line(nil), c.Lines...)
	if cp.Lines == nil {
		cp.Lines = []Line{}
	}
	return &cp
}

func (c *Cart) indexOfProduct(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) indexOfLine(lineID string) int {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return i
		}
	}
	return -1
}
