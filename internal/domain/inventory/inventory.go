// Package inventory is the authoritative ledger of on-hand versus reserved
// quantity per product and date range.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/rental-ledger/internal/domain/period"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	// StatusHeld is a cart hold. It counts against stock until ExpiresAt.
	StatusHeld Status = "held"
	// StatusConfirmed is pinned to a confirmed order and no longer expires.
	StatusConfirmed Status = "confirmed"
	// StatusCommitted is out with the customer and cannot be released.
	StatusCommitted Status = "committed"
	// StatusFulfilled has been returned and no longer counts against stock.
	StatusFulfilled Status = "fulfilled"
	// StatusReleased was dropped before pickup.
	StatusReleased Status = "released"
)

var (
	ErrNotFound             = errors.New("reservation not found")
	ErrInvalidQuantity      = errors.New("reservation quantity must be greater than 0")
	ErrReservationCommitted = errors.New("reservation is committed and cannot be released")
	ErrReservationInactive  = errors.New("reservation is not active")
)

// InsufficientStockError reports that a product cannot cover a request for
// the given range.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Reservation is a hold on Quantity units of a product for Range.
type Reservation struct {
	ID          string       `json:"id"`
	ProductID   string       `json:"product_id"`
	OrderID     string       `json:"order_id"`
	OrderItemID string       `json:"order_item_id"`
	Range       period.Range `json:"range"`
	Quantity    int          `json:"quantity"`
	Status      Status       `json:"status"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Counts reports whether the reservation consumes stock at instant now.
func (r Reservation) Counts(now time.Time) bool {
	switch r.Status {
	case StatusHeld:
		return r.ExpiresAt == nil || r.ExpiresAt.After(now)
	case StatusConfirmed, StatusCommitted:
		return true
	default:
		return false
	}
}

// Available returns onHand minus the quantity of every counting reservation
// overlapping rng, floored at zero. Reservations for which exclude returns
// true are ignored.
func Available(onHand int, reservations []Reservation, rng period.Range, now time.Time, exclude func(Reservation) bool) int {
	reserved := 0
	for _, r := range reservations {
		if !r.Counts(now) || !r.Range.Overlaps(rng) {
			continue
		}
		if exclude != nil && exclude(r) {
			continue
		}
		reserved += r.Quantity
	}
	avail := onHand - reserved
	if avail < 0 {
		return 0
	}
	return avail
}

// nextStatus validates a reservation transition. A nil error with
// changed=false means the reservation is already in the target state.
func nextStatus(from, to Status) (changed bool, err error) {
	if from == to {
		return false, nil
	}
	switch to {
	case StatusReleased:
		switch from {
		case StatusHeld, StatusConfirmed:
			return true, nil
		case StatusCommitted, StatusFulfilled:
			return false, ErrReservationCommitted
		}
	case StatusConfirmed:
		if from == StatusHeld {
			return true, nil
		}
	case StatusCommitted:
		if from == StatusHeld || from == StatusConfirmed {
			return true, nil
		}
	case StatusFulfilled:
		if from == StatusCommitted {
			return true, nil
		}
	}
	return false, errors.Wrapf(ErrReservationInactive, "%s -> %s", from, to)
}

// Repository persists reservations. Implementations join the transaction
// carried by ctx when there is one.
type Repository interface {
	Create(ctx context.Context, r *Reservation) error
	GetForUpdate(ctx context.Context, id string) (*Reservation, error)
	UpdateStatus(ctx context.Context, id string, status Status, expiresAt *time.Time) error
	// ListOverlapping returns held, confirmed and committed reservations of the
	// product whose range overlaps rng.
	ListOverlapping(ctx context.Context, productID string, rng period.Range) ([]Reservation, error)
	ListByOrder(ctx context.Context, orderID string) ([]Reservation, error)
	// ReleaseExpired marks held reservations with expires_at <= now released
	// and returns how many were changed.
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}

// Transactor runs fn in a single database transaction. Repository calls made
// with the ctx handed to fn join that transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
