package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusQuotation Status = "quotation"
	StatusConfirmed Status = "confirmed"
	StatusPickedUp  Status = "picked_up"
	StatusReturned  Status = "returned"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusDraft:     {StatusQuotation, StatusCancelled},
	StatusQuotation: {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPickedUp, StatusCancelled},
	StatusPickedUp:  {StatusReturned},
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusQuotation, StatusConfirmed, StatusPickedUp, StatusReturned, StatusCancelled:
		return st, nil
	default:
		return "", errors.Errorf("unknown order status %q", s)
	}
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Editable reports whether items, coupon and addresses may still change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusQuotation
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// IllegalTransitionError is returned for a lifecycle step the state table
// does not allow.
type IllegalTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
}

// transition moves o to status to, leaving o unchanged on error.
func (o *Order) transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return &IllegalTransitionError{OrderID: o.ID, From: o.Status, To: to}
	}
	o.Status = to
	return nil
}
