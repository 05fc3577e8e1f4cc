package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rental-ledger/internal/domain/inventory"
	"github.com/xenking/rental-ledger/internal/domain/period"
	"github.com/xenking/rental-ledger/internal/domain/product"
	"github.com/xenking/rental-ledger/internal/repository/memstore"
)

func jan(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func rng(from, to int) period.Range {
	return period.Range{Start: jan(from), End: jan(to)}
}

func newLedger(t *testing.T, onHand int, holdTTL time.Duration) (*inventory.Ledger, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	store.Products().Put(context.Background(), product.Product{ID: "cam", VendorID: "v1", Name: "Camera", QuantityOnHand: onHand})
	l := inventory.NewLedger(store, store.Products(), store.Reservations(), holdTTL)
	return l, store
}

func TestLedger_Availability(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, 3, 0)

	_, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 2})
	require.NoError(t, err)

	a, err := l.Check(ctx, "cam", rng(3, 10), 2)
	require.NoError(t, err)
	assert.False(t, a.IsAvailable)
	assert.Equal(t, 1, a.AvailableQuantity)

	ok, err := l.IsAvailable(ctx, "cam", rng(3, 10), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// Half-open: a rental starting when the other ends does not overlap.
	n, err := l.AvailableQuantity(ctx, "cam", rng(5, 8))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLedger_ReserveInsufficient(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, 3, 0)

	_, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 2})
	require.NoError(t, err)

	_, err = l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o2", Range: rng(3, 10), Quantity: 2})
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	_, err = l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o3", Range: rng(5, 10), Quantity: 3})
	require.NoError(t, err)
}

func TestLedger_ReserveValidation(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, 3, 0)

	_, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", Range: rng(1, 5), Quantity: 0})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	_, err = l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", Range: rng(5, 5), Quantity: 1})
	require.ErrorIs(t, err, period.ErrInvalidRange)

	_, err = l.Reserve(ctx, inventory.ReserveRequest{ProductID: "missing", Range: rng(1, 5), Quantity: 1})
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestLedger_ReleaseRestoresAvailability(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, 3, 0)

	before, err := l.AvailableQuantity(ctx, "cam", rng(1, 5))
	require.NoError(t, err)

	r, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, r.ID))
	require.NoError(t, l.Release(ctx, r.ID))

	after, err := l.AvailableQuantity(ctx, "cam", rng(1, 5))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLedger_CommittedIsNotReleasable(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, 3, 0)

	r, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, r.ID))

	require.ErrorIs(t, l.Release(ctx, r.ID), inventory.ErrReservationCommitted)

	got, err := store.Reservations().Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.StatusCommitted, got.Status)

	require.NoError(t, l.Fulfill(ctx, r.ID))
	n, err := l.AvailableQuantity(ctx, "cam", rng(1, 5))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.ErrorIs(t, l.Release(ctx, r.ID), inventory.ErrReservationCommitted)
}

func TestLedger_FulfillRequiresCommit(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, 3, 0)

	r, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 1})
	require.NoError(t, err)
	require.ErrorIs(t, l.Fulfill(ctx, r.ID), inventory.ErrReservationInactive)
}

func TestLedger_HoldExpiry(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, 1, time.Hour)

	r, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 1})
	require.NoError(t, err)
	require.NotNil(t, r.ExpiresAt)

	// A hold that expired but was not swept yet no longer counts.
	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Reservations().UpdateStatus(ctx, r.ID, inventory.StatusHeld, &past))

	n, err := l.AvailableQuantity(ctx, "cam", rng(1, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	released, err := l.ExpireHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	got, err := store.Reservations().Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.StatusReleased, got.Status)
}

func TestLedger_ConfirmPinsHold(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, 2, time.Hour)

	hold, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 2})
	require.NoError(t, err)

	got, err := l.Confirm(ctx, hold.ID, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, hold.ID, got.ID)
	assert.Equal(t, inventory.StatusConfirmed, got.Status)
	assert.Nil(t, got.ExpiresAt)

	n, err := l.AvailableQuantity(ctx, "cam", rng(1, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLedger_ConfirmReplacesLapsedHold(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, 2, time.Hour)

	hold, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 1})
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Reservations().UpdateStatus(ctx, hold.ID, inventory.StatusHeld, &past))

	got, err := l.Confirm(ctx, hold.ID, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 1})
	require.NoError(t, err)
	assert.NotEqual(t, hold.ID, got.ID)
	assert.Equal(t, inventory.StatusConfirmed, got.Status)

	old, err := store.Reservations().Get(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.StatusReleased, old.Status)
}

func TestLedger_ConfirmStale(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, 1, time.Hour)

	hold, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 1})
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Reservations().UpdateStatus(ctx, hold.ID, inventory.StatusHeld, &past))

	// Someone else takes the unit while the hold is lapsed.
	_, err = l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o2", Range: rng(2, 3), Quantity: 1})
	require.NoError(t, err)

	_, err = l.Confirm(ctx, hold.ID, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", Range: rng(1, 5), Quantity: 1})
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)

	mine, err := store.Reservations().ListByOrder(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, hold.ID, mine[0].ID)
}

func TestLedger_ConfirmCountsSiblingItems(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, 1, time.Hour)

	first, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", OrderItemID: "i1", Range: rng(1, 5), Quantity: 1})
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Reservations().UpdateStatus(ctx, first.ID, inventory.StatusHeld, &past))

	// The lapsed hold frees the unit for a second item of the same order.
	second, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", OrderItemID: "i2", Range: rng(1, 5), Quantity: 1})
	require.NoError(t, err)

	_, err = l.Confirm(ctx, first.ID, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", OrderItemID: "i1", Range: rng(1, 5), Quantity: 1})
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)

	got, err := l.Confirm(ctx, second.ID, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", OrderItemID: "i2", Range: rng(1, 5), Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	a, err := l.Check(ctx, "cam", rng(1, 5), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, a.AvailableQuantity)
}

func TestLedger_ConfirmReplacedHoldBlocksSibling(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, 1, time.Hour)

	first, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", OrderItemID: "i1", Range: rng(1, 5), Quantity: 1})
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Reservations().UpdateStatus(ctx, first.ID, inventory.StatusHeld, &past))

	second, err := l.Reserve(ctx, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", OrderItemID: "i2", Range: rng(3, 7), Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, store.Reservations().UpdateStatus(ctx, second.ID, inventory.StatusHeld, &past))

	// First item gets a fresh confirmed row in place of its lapsed hold.
	replaced, err := l.Confirm(ctx, first.ID, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", OrderItemID: "i1", Range: rng(1, 5), Quantity: 1})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, replaced.ID)

	// The replacement belongs to the same order but still counts against the sibling.
	_, err = l.Confirm(ctx, second.ID, inventory.ReserveRequest{ProductID: "cam", OrderID: "o1", OrderItemID: "i2", Range: rng(3, 7), Quantity: 1})
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)
}

func TestLedger_ConcurrentReservesNeverOversell(t *testing.T) {
	ctx := context.Background()
	l, store := newLedger(t, 5, 0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Reserve(ctx, inventory.ReserveRequest{
				ProductID: "cam",
				OrderID:   "o",
				Range:     rng(1+i%3, 6),
				Quantity:  1,
			})
			var stockErr *inventory.InsufficientStockError
			switch {
			case err == nil:
				mu.Lock()
				granted++
				mu.Unlock()
			case errors.As(err, &stockErr):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, granted)
	rs, err := store.Reservations().ListOverlapping(ctx, "cam", rng(1, 6))
	require.NoError(t, err)
	total := 0
	for _, r := range rs {
		total += r.Quantity
	}
	assert.Equal(t, 5, total)
}

func TestAvailable(t *testing.T) {
	now := jan(1)
	future := jan(2)
	past := jan(1).Add(-time.Hour)
	rs := []inventory.Reservation{
		{ID: "a", OrderID: "o1", Range: rng(1, 5), Quantity: 1, Status: inventory.StatusHeld, ExpiresAt: &future},
		{ID: "b", OrderID: "o2", Range: rng(1, 5), Quantity: 1, Status: inventory.StatusHeld, ExpiresAt: &past},
		{ID: "c", OrderID: "o3", Range: rng(3, 4), Quantity: 2, Status: inventory.StatusCommitted},
		{ID: "d", OrderID: "o4", Range: rng(1, 5), Quantity: 5, Status: inventory.StatusReleased},
		{ID: "e", OrderID: "o5", Range: rng(5, 9), Quantity: 5, Status: inventory.StatusConfirmed},
	}

	assert.Equal(t, 2, inventory.Available(5, rs, rng(1, 5), now, nil))
	assert.Equal(t, 3, inventory.Available(5, rs, rng(1, 5), now, func(r inventory.Reservation) bool {
		return r.OrderID == "o1"
	}))
	assert.Equal(t, 0, inventory.Available(2, rs, rng(1, 5), now, nil))
}
