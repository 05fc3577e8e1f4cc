package inventory

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/rental-ledger/internal/domain/period"
	"github.com/xenking/rental-ledger/internal/domain/product"
)

// ReserveRequest describes a hold to place on a product.
type ReserveRequest struct {
	ProductID   string
	OrderID     string
	OrderItemID string
	Range       period.Range
	Quantity    int
	// Status defaults to StatusHeld.
	Status Status
	// ExpiresAt only applies to held reservations. Nil means the ledger's
	// hold TTL.
	ExpiresAt *time.Time
}

// Availability answers whether a quantity is free for a range.
type Availability struct {
	IsAvailable       bool `json:"is_available"`
	AvailableQuantity int  `json:"available_quantity"`
}

// Ledger implements reserve/release/commit on top of a Repository. Every
// check-and-reserve runs under the product row lock in one transaction.
type Ledger struct {
	tx           Transactor
	products     product.Repository
	reservations Repository
	holdTTL      time.Duration
	now          func() time.Time
}

// NewLedger creates a Ledger. holdTTL bounds how long a cart hold blocks
// stock; zero disables expiry.
func NewLedger(tx Transactor, products product.Repository, reservations Repository, holdTTL time.Duration) *Ledger {
	return &Ledger{
		tx:           tx,
		products:     products,
		reservations: reservations,
		holdTTL:      holdTTL,
		now:          time.Now,
	}
}

// AvailableQuantity returns the free quantity of the product over rng.
func (l *Ledger) AvailableQuantity(ctx context.Context, productID string, rng period.Range) (int, error) {
	a, err := l.Check(ctx, productID, rng, 0)
	if err != nil {
		return 0, err
	}
	return a.AvailableQuantity, nil
}

// IsAvailable reports whether qty units of the product are free over rng.
func (l *Ledger) IsAvailable(ctx context.Context, productID string, rng period.Range, qty int) (bool, error) {
	a, err := l.Check(ctx, productID, rng, qty)
	if err != nil {
		return false, err
	}
	return a.IsAvailable, nil
}

// Check evaluates availability against current stock and reservations.
func (l *Ledger) Check(ctx context.Context, productID string, rng period.Range, qty int) (Availability, error) {
	if err := rng.Validate(); err != nil {
		return Availability{}, err
	}
	p, err := l.products.GetByID(ctx, productID)
	if err != nil {
		return Availability{}, errors.Wrap(err, "get product")
	}
	rs, err := l.reservations.ListOverlapping(ctx, productID, rng)
	if err != nil {
		return Availability{}, errors.Wrap(err, "list reservations")
	}
	avail := Available(p.QuantityOnHand, rs, rng, l.now(), nil)
	return Availability{IsAvailable: avail >= qty, AvailableQuantity: avail}, nil
}

// Reserve atomically checks availability and records the reservation.
func (l *Ledger) Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}

	var res *Reservation
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = l.reserveLocked(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Confirm pins an order item's cart hold. Availability is re-evaluated
// excluding only that hold; if the hold has lapsed a fresh confirmed
// reservation is recorded in its place.
func (l *Ledger) Confirm(ctx context.Context, holdID string, req ReserveRequest) (*Reservation, error) {
	var res *Reservation
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := l.products.GetForUpdate(ctx, req.ProductID)
		if err != nil {
			return errors.Wrap(err, "lock product")
		}
		rs, err := l.reservations.ListOverlapping(ctx, req.ProductID, req.Range)
		if err != nil {
			return errors.Wrap(err, "list reservations")
		}
		own := func(r Reservation) bool { return holdID != "" && r.ID == holdID }
		avail := Available(p.QuantityOnHand, rs, req.Range, l.now(), own)
		if avail < req.Quantity {
			return &InsufficientStockError{ProductID: req.ProductID, Requested: req.Quantity, Available: avail}
		}

		if holdID != "" {
			hold, err := l.reservations.GetForUpdate(ctx, holdID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return errors.Wrap(err, "get hold")
			}
			if hold != nil && hold.Counts(l.now()) {
				if hold.Status == StatusHeld {
					if err := l.reservations.UpdateStatus(ctx, hold.ID, StatusConfirmed, nil); err != nil {
						return errors.Wrap(err, "confirm hold")
					}
					hold.Status = StatusConfirmed
					hold.ExpiresAt = nil
				}
				res = hold
				return nil
			}
			if hold != nil && hold.Status == StatusHeld {
				if err := l.reservations.UpdateStatus(ctx, hold.ID, StatusReleased, nil); err != nil {
					return errors.Wrap(err, "release lapsed hold")
				}
			}
		}

		res, err = l.insert(ctx, ReserveRequest{
			ProductID:   req.ProductID,
			OrderID:     req.OrderID,
			OrderItemID: req.OrderItemID,
			Range:       req.Range,
			Quantity:    req.Quantity,
			Status:      StatusConfirmed,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Release drops a reservation. Committed reservations cannot be released.
func (l *Ledger) Release(ctx context.Context, id string) error {
	return l.transition(ctx, id, StatusReleased)
}

// Commit marks a reservation non-releasable; called when goods are picked up.
func (l *Ledger) Commit(ctx context.Context, id string) error {
	return l.transition(ctx, id, StatusCommitted)
}

// Fulfill closes a committed reservation once goods are returned.
func (l *Ledger) Fulfill(ctx context.Context, id string) error {
	return l.transition(ctx, id, StatusFulfilled)
}

// ExpireHolds releases every cart hold whose TTL has passed.
func (l *Ledger) ExpireHolds(ctx context.Context) (int, error) {
	n, err := l.reservations.ReleaseExpired(ctx, l.now())
	if err != nil {
		return 0, errors.Wrap(err, "release expired holds")
	}
	return n, nil
}

func (l *Ledger) transition(ctx context.Context, id string, to Status) error {
	return l.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := l.reservations.GetForUpdate(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "get reservation %s", id)
		}
		changed, err := nextStatus(r.Status, to)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return l.reservations.UpdateStatus(ctx, id, to, nil)
	})
}

func (l *Ledger) reserveLocked(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	p, err := l.products.GetForUpdate(ctx, req.ProductID)
	if err != nil {
		return nil, errors.Wrap(err, "lock product")
	}
	rs, err := l.reservations.ListOverlapping(ctx, req.ProductID, req.Range)
	if err != nil {
		return nil, errors.Wrap(err, "list reservations")
	}
	avail := Available(p.QuantityOnHand, rs, req.Range, l.now(), nil)
	if avail < req.Quantity {
		return nil, &InsufficientStockError{ProductID: req.ProductID, Requested: req.Quantity, Available: avail}
	}
	return l.insert(ctx, req)
}

func (l *Ledger) insert(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	now := l.now()
	r := &Reservation{
		ID:          uuid.New().String(),
		ProductID:   req.ProductID,
		OrderID:     req.OrderID,
		OrderItemID: req.OrderItemID,
		Range:       req.Range,
		Quantity:    req.Quantity,
		Status:      req.Status,
		CreatedAt:   now,
	}
	if r.Status == "" {
		r.Status = StatusHeld
	}
	if r.Status == StatusHeld {
		switch {
		case req.ExpiresAt != nil:
			r.ExpiresAt = req.ExpiresAt
		case l.holdTTL > 0:
			exp := now.Add(l.holdTTL)
			r.ExpiresAt = &exp
		}
	}
	if err := l.reservations.Create(ctx, r); err != nil {
		return nil, errors.Wrap(err, "create reservation")
	}
	return r, nil
}
