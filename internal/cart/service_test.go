package cart_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"checkoutservice/internal/apperr"
	"checkoutservice/internal/cart"
	"checkoutservice/internal/catalog"
	"checkoutservice/internal/inventory"
	"checkoutservice/internal/platform/txn"
	"checkoutservice/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func newService(t testing.TB) (*cart.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.PutUser("alice")
	store.PutUser("bob")
	store.PutProduct(catalog.Product{ID: "book", Name: "Book", Price: decimal.RequireFromString("12.50"), Stock: 10})
	store.PutProduct(catalog.Product{ID: "pen", Name: "Pen", Price: decimal.RequireFromString("1.25"), Stock: 3})

	svc := cart.NewService(store.Carts(), store, store, store, txn.Passthrough{},
		zap.NewNop(), noop.NewTracerProvider().Tracer("test"))
	return svc, store
}

func TestAddLineMergesSameProduct(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	first, err := svc.AddLine(ctx, "alice", "book", 2)
	require.NoError(t, err)
	second, err := svc.AddLine(ctx, "alice", "book", 3)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Quantity)

	sum, err := svc.Summary(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sum.Lines, 1)
	assert.Equal(t, 5, sum.Lines[0].Quantity)
}

func TestAddLineMergeProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		svc, store := newService(t)
		store.PutProduct(catalog.Product{ID: "bulk", Name: "Bulk", Price: decimal.NewFromInt(1), Stock: 1000})

		adds := rapid.SliceOfN(rapid.IntRange(1, 20), 1, 25).Draw(rt, "adds")
		want := 0
		for _, q := range adds {
			_, err := svc.AddLine(ctx, "alice", "bulk", q)
			require.NoError(rt, err)
			want += q
		}

		sum, err := svc.Summary(ctx, "alice")
		require.NoError(rt, err)
		require.Len(rt, sum.Lines, 1)
		require.Equal(rt, want, sum.Lines[0].Quantity)
		require.Equal(rt, want, sum.TotalQuantity)
	})
}

func TestAddLineRejections(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	_, err := svc.AddLine(ctx, "alice", "pen", 2)
	require.NoError(t, err)

	cases := []struct {
		name      string
		userID    string
		productID string
		qty       int
		kind      apperr.Kind
	}{
		{"zero quantity", "alice", "pen", 0, apperr.InvalidQuantity},
		{"negative quantity", "alice", "pen", -1, apperr.InvalidQuantity},
		{"unknown user", "mallory", "pen", 1, apperr.UserNotFound},
		{"unknown product", "alice", "ghost", 1, apperr.ProductNotFound},
		{"merged quantity exceeds stock", "alice", "pen", 2, apperr.InsufficientStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddLine(ctx, tc.userID, tc.productID, tc.qty)
			assert.Equal(t, tc.kind, apperr.KindOf(err), "got %v", err)

			count, err := svc.ItemCount(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, 2, count)
		})
	}

	stock, err := store.Available(ctx, "pen")
	require.NoError(t, err)
	assert.Equal(t, 3, stock, "cart mutations never reserve")
}

func TestUpdateLine(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	line, err := svc.AddLine(ctx, "alice", "book", 1)
	require.NoError(t, err)

	updated, err := svc.UpdateLine(ctx, "alice", line.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Quantity)

	_, err = svc.UpdateLine(ctx, "alice", line.ID, 11)
	assert.True(t, apperr.Is(err, apperr.InsufficientStock))

	_, err = svc.UpdateLine(ctx, "alice", line.ID, 0)
	assert.True(t, apperr.Is(err, apperr.InvalidQuantity))

	_, err = svc.UpdateLine(ctx, "alice", line.ID, math.MaxInt)
	assert.True(t, apperr.Is(err, apperr.InvalidQuantity))

	_, err = svc.UpdateLine(ctx, "bob", line.ID, 1)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	_, err = svc.UpdateLine(ctx, "alice", "no-such-line", 1)
	assert.True(t, apperr.Is(err, apperr.CartLineNotFound))

	count, err := svc.ItemCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestRemoveLine(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	book, err := svc.AddLine(ctx, "alice", "book", 1)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, "alice", "pen", 1)
	require.NoError(t, err)

	assert.True(t, apperr.Is(svc.RemoveLine(ctx, "bob", book.ID), apperr.Forbidden))

	require.NoError(t, svc.RemoveLine(ctx, "alice", book.ID))
	require.NoError(t, svc.RemoveLine(ctx, "alice", book.ID), "removing twice is a no-op")
	require.NoError(t, svc.RemoveLine(ctx, "bob", "never-existed"))

	sum, err := svc.Summary(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sum.Lines, 1)
	assert.Equal(t, "pen", sum.Lines[0].ProductID)
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	require.NoError(t, svc.Clear(ctx, "alice"))
	_, err := svc.AddLine(ctx, "alice", "book", 2)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "alice"))
	require.NoError(t, svc.Clear(ctx, "alice"))

	count, err := svc.ItemCount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSummaryUsesLivePrices(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	_, err := svc.AddLine(ctx, "alice", "book", 2)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, "alice", "pen", 3)
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, sum.TotalQuantity)
	assert.True(t, sum.TotalPrice.Equal(decimal.RequireFromString("28.75")), sum.TotalPrice.String())
	assert.Equal(t, "book", sum.Lines[0].ProductID, "insertion order")

	store.PutProduct(catalog.Product{ID: "book", Name: "Book (2nd ed.)", Price: decimal.RequireFromString("15.00"), Stock: 10})

	sum, err = svc.Summary(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Book (2nd ed.)", sum.Lines[0].ProductName)
	assert.True(t, sum.TotalPrice.Equal(decimal.RequireFromString("33.75")), sum.TotalPrice.String())
}

func TestSummaryOfMissingCart(t *testing.T) {
	svc, _ := newService(t)

	sum, err := svc.Summary(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, sum.Lines)
	assert.True(t, sum.TotalPrice.IsZero())
}

func TestCheckoutClearsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.AddLine(ctx, "alice", "book", 2)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = svc.Checkout(ctx, "alice", func(_ context.Context, lines []cart.Line) error {
		require.Len(t, lines, 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := svc.ItemCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var seen []cart.Line
	err = svc.Checkout(ctx, "alice", func(_ context.Context, lines []cart.Line) error {
		seen = lines
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, 2, seen[0].Quantity)

	count, err = svc.ItemCount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestConcurrentAddsForOneUser(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	store.PutProduct(catalog.Product{ID: "bulk", Name: "Bulk", Price: decimal.NewFromInt(1), Stock: 1000})

	errs := make(chan error, 20)
	for i := range 20 {
		go func() {
			_, err := svc.AddLine(ctx, "alice", "bulk", 1)
			if err != nil {
				err = fmt.Errorf("add %d: %w", i, err)
			}
			errs <- err
		}()
	}
	for range 20 {
		require.NoError(t, <-errs)
	}

	sum, err := svc.Summary(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sum.Lines, 1)
	assert.Equal(t, 20, sum.Lines[0].Quantity)
}

func TestAddLineCannotOverflowMergedQuantity(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	store.PutProduct(catalog.Product{ID: "bulk", Name: "Bulk", Price: decimal.NewFromInt(1), Stock: inventory.MaxQuantity})

	_, err := svc.AddLine(ctx, "alice", "book", 1)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, "alice", "book", math.MaxInt)
	assert.True(t, apperr.Is(err, apperr.InvalidQuantity), "got %v", err)

	_, err = svc.AddLine(ctx, "alice", "bulk", inventory.MaxQuantity)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, "alice", "bulk", 1)
	assert.True(t, apperr.Is(err, apperr.InvalidQuantity), "got %v", err)

	sum, err := svc.Summary(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sum.Lines, 2)
	assert.Equal(t, 1, sum.Lines[0].Quantity)
	assert.Equal(t, inventory.MaxQuantity, sum.Lines[1].Quantity)
	for _, l := range sum.Lines {
		assert.Positive(t, l.Quantity)
	}
}
