// Package event defines lifecycle notifications emitted after a state change
// has been committed.
package event

import "context"

// Type names a lifecycle event.
type Type string

const (
	OrderConfirmed   Type = "order.confirmed"
	OrderPickedUp    Type = "order.picked_up"
	OrderReturned    Type = "order.returned"
	OrderCancelled   Type = "order.cancelled"
	PaymentCompleted Type = "payment.completed"
)

// Event is a single notification. Key is used for partitioning, usually the
// order id.
type Event struct {
	Type    Type
	Key     string
	Payload any
}

// Publisher delivers events. Delivery is best effort: failures are logged by
// the implementation and never fail the caller.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
