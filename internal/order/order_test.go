package order

import (
	"math"
	"testing"
	"time"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/inventory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" shipped ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, s)

	_, err = ParseStatus("RETURNED")
	assert.True(t, apperr.Is(err, apperr.InvalidStatus))
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending: {StatusShipped, StatusDelivered, StatusCancelled},
		StatusShipped: {StatusDelivered},
	}
	all := []Status{StatusPending, StatusShipped, StatusDelivered, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				want = want || a == to
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, StatusPending.Cancellable())
	assert.False(t, StatusShipped.Cancellable())
}

func TestNewNumber(t *testing.T) {
	n := NewNumber(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC))
	assert.Regexp(t, `^ORD-20241231-[0-9A-F]{8}$`, n)
	assert.NotEqual(t, n, NewNumber(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)))
}

func TestNewPageResult(t *testing.T) {
	r := newPageResult(nil, 0, Page{Number: 1, PerPage: 10})
	assert.NotNil(t, r.Items)
	assert.Zero(t, r.TotalPages)

	r = newPageResult([]*Order{{}, {}}, 21, Page{Number: 3, PerPage: 10})
	assert.Equal(t, 3, r.TotalPages)
	assert.Equal(t, 20, Page{Number: 3, PerPage: 10}.Offset())
}

func TestNormalizeLinesMergesWithoutLosingQuantity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		products := []string{"a", "b", "c", "d"}
		lines := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) LineRequest {
			return LineRequest{
				ProductID: rapid.SampledFrom(products).Draw(t, "product"),
				Quantity:  rapid.IntRange(1, 50).Draw(t, "qty"),
			}
		}), 1, 20).Draw(t, "lines")

		merged, err := normalizeLines(lines)
		require.NoError(t, err)

		want := map[string]int{}
		for _, l := range lines {
			want[l.ProductID] += l.Quantity
		}
		got := map[string]int{}
		for _, l := range merged {
			_, dup := got[l.ProductID]
			require.False(t, dup, "product %s appears twice", l.ProductID)
			got[l.ProductID] = l.Quantity
		}
		require.Equal(t, want, got)
		require.Equal(t, lines[0].ProductID, merged[0].ProductID)
	})
}

func TestNormalizeLinesRejectsOverflowingMerge(t *testing.T) {
	_, err := normalizeLines([]LineRequest{{ProductID: "a", Quantity: 1}, {ProductID: "a", Quantity: math.MaxInt}})
	assert.True(t, apperr.Is(err, apperr.InvalidQuantity), "got %v", err)

	_, err = normalizeLines([]LineRequest{{ProductID: "a", Quantity: inventory.MaxQuantity}, {ProductID: "a", Quantity: 1}})
	assert.True(t, apperr.Is(err, apperr.InvalidQuantity), "got %v", err)

	merged, err := normalizeLines([]LineRequest{{ProductID: "a", Quantity: inventory.MaxQuantity - 1}, {ProductID: "a", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, []LineRequest{{ProductID: "a", Quantity: inventory.MaxQuantity}}, merged)
}
