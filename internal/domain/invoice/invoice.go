// Package invoice issues immutable billing snapshots of confirmed orders and
// tracks how much of each has been paid.
package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/rental-ledger/internal/domain/period"
)

// Status is the payment state of an invoice.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusPosted        Status = "posted"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// LineKind distinguishes rental lines from pass-through charges.
type LineKind string

const (
	LineRental   LineKind = "rental"
	LineDeposit  LineKind = "deposit"
	LineDelivery LineKind = "delivery"
)

var (
	ErrNotFound      = errors.New("invoice not found")
	ErrInvalidAmount = errors.New("payment amount must be greater than 0")
)

// StateError is returned when an action is not allowed in the invoice's
// current status.
type StateError struct {
	InvoiceID string
	Status    Status
	Action    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s invoice %s in status %s", e.Action, e.InvoiceID, e.Status)
}

// OverpaymentError is returned when a payment would exceed the amount due.
type OverpaymentError struct {
	InvoiceID string
	Amount    decimal.Decimal
	AmountDue decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds amount due %s on invoice %s",
		e.Amount.StringFixed(2), e.AmountDue.StringFixed(2), e.InvoiceID)
}

// PartySnapshot freezes a party's billing identity at issue time.
type PartySnapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CompanyName string `json:"company_name"`
	GSTIN       string `json:"gstin"`
	Address     string `json:"address"`
}

// Line is one row of the invoice.
type Line struct {
	Kind        LineKind        `json:"kind"`
	Description string          `json:"description"`
	ProductID   string          `json:"product_id,omitempty"`
	ProductSKU  string          `json:"product_sku,omitempty"`
	Period      *period.Range   `json:"rental_period,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// Invoice is the billing snapshot of one order.
type Invoice struct {
	ID              string          `json:"id"`
	Number          string          `json:"invoice_number"`
	OrderID         string          `json:"order_id"`
	OrderNumber     string          `json:"order_number"`
	Customer        PartySnapshot   `json:"customer"`
	Vendor          PartySnapshot   `json:"vendor"`
	BillingAddress  string          `json:"billing_address"`
	DeliveryAddress string          `json:"delivery_address"`
	RentalPeriod    period.Range    `json:"rental_period"`
	Lines           []Line          `json:"lines"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	CGST            decimal.Decimal `json:"cgst"`
	SGST            decimal.Decimal `json:"sgst"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	DeliveryCharges decimal.Decimal `json:"delivery_charges"`
	Discount        decimal.Decimal `json:"discount"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Total           decimal.Decimal `json:"total"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	AmountDue       decimal.Decimal `json:"amount_due"`
	Currency        string          `json:"currency"`
	Status          Status          `json:"status"`
	InvoiceDate     time.Time       `json:"invoice_date"`
	DueDate         time.Time       `json:"due_date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Post moves a draft invoice to posted.
func (inv *Invoice) Post() error {
	if inv.Status != StatusDraft {
		return &StateError{InvoiceID: inv.ID, Status: inv.Status, Action: "post"}
	}
	inv.Status = StatusPosted
	return nil
}

// ApplyPayment credits amount against the invoice. A draft invoice is posted
// implicitly. The invoice is left unchanged on error.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	switch inv.Status {
	case StatusDraft, StatusPosted, StatusPartiallyPaid:
	default:
		return &StateError{InvoiceID: inv.ID, Status: inv.Status, Action: "pay"}
	}

	due := inv.Total.Sub(inv.AmountPaid)
	if amount.GreaterThan(due) {
		return &OverpaymentError{InvoiceID: inv.ID, Amount: amount, AmountDue: due}
	}

	inv.AmountPaid = inv.AmountPaid.Add(amount).Round(2)
	inv.AmountDue = inv.Total.Sub(inv.AmountPaid).Round(2)
	if inv.AmountDue.IsZero() {
		inv.Status = StatusPaid
	} else {
		inv.Status = StatusPartiallyPaid
	}
	return nil
}

// Cancel voids the invoice. Cancelling a cancelled invoice is a no-op and an
// invoice that collected any payment cannot be voided.
func (inv *Invoice) Cancel() error {
	switch inv.Status {
	case StatusCancelled:
		return nil
	case StatusPaid, StatusPartiallyPaid:
		return &StateError{InvoiceID: inv.ID, Status: inv.Status, Action: "cancel"}
	}
	inv.Status = StatusCancelled
	return nil
}

// Filter narrows invoice listings. Zero values match everything.
type Filter struct {
	CustomerID string
	VendorID   string
	Statuses   []Status
	Page       int
	PerPage    int
}

// Repository persists invoices. Implementations join the transaction carried
// by ctx when there is one.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	GetForUpdate(ctx context.Context, id string) (*Invoice, error)
	GetByOrder(ctx context.Context, orderID string) (*Invoice, error)
	// Update persists status and paid amounts.
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, f Filter) ([]Invoice, int, error)
	// NextNumber allocates the next sequence value for year.
	NextNumber(ctx context.Context, year int) (int, error)
}

// Transactor runs fn in one database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
