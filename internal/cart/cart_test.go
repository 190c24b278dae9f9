package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCartAggregate(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New("alice", t0)

	a := c.Add("l1", "book", 1, t0.Add(time.Minute))
	c.Add("l2", "pen", 2, t0.Add(2*time.Minute))
	merged := c.Add("l3", "book", 4, t0.Add(3*time.Minute))

	assert.Equal(t, a.ID, merged.ID)
	assert.Equal(t, 5, c.QuantityOf("book"))
	assert.Equal(t, 7, c.TotalQuantity())
	assert.Equal(t, t0.Add(3*time.Minute), c.UpdatedAt)

	_, ok := c.SetQuantity("missing", 1, t0)
	assert.False(t, ok)

	cp := c.Clone()
	assert.True(t, c.Remove("l1", t0.Add(4*time.Minute)))
	assert.False(t, c.Remove("l1", t0.Add(4*time.Minute)))
	assert.Len(t, cp.Lines, 2, "clone is independent")

	c.Clear(t0.Add(5 * time.Minute))
	assert.NotNil(t, c.Lines)
	assert.Zero(t, c.TotalQuantity())
}
