package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/rental-ledger/internal/domain/period"
	"github.com/xenking/rental-ledger/internal/domain/pricing"
)

// DeliveryMethod is how goods reach the customer.
type DeliveryMethod string

const (
	DeliveryPickup   DeliveryMethod = "pickup"
	DeliveryStandard DeliveryMethod = "standard"
)

// Sentinel errors for order validation.
var (
	ErrNotFound         = errors.New("order not found")
	ErrItemNotFound     = errors.New("order item not found")
	ErrEmptyOrder       = errors.New("order has no items")
	ErrTermsNotAccepted = errors.New("terms and conditions must be accepted")
	ErrNotEditable      = errors.New("order can no longer be modified")
)

// InvalidAddressError lists the address fields missing for confirmation.
type InvalidAddressError struct {
	Fields []string
}

func (e *InvalidAddressError) Error() string {
	return "missing required address fields: " + strings.Join(e.Fields, ", ")
}

// StaleItem is an order item that can no longer be covered by stock.
type StaleItem struct {
	ItemID    string `json:"item_id"`
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// StaleAvailabilityError is returned when availability changed between
// add-to-cart and confirmation.
type StaleAvailabilityError struct {
	OrderID string
	Items   []StaleItem
}

func (e *StaleAvailabilityError) Error() string {
	return fmt.Sprintf("availability changed for %d item(s) of order %s", len(e.Items), e.OrderID)
}

// Item is a priced line of an order.
type Item struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	ProductSKU       string          `json:"product_sku"`
	Quantity         int             `json:"quantity"`
	RentalPeriod     period.Range    `json:"rental_period"`
	RentalPeriodType string          `json:"rental_period_type,omitempty"`
	Basis            pricing.Basis   `json:"billing_basis"`
	Months           int             `json:"months"`
	Weeks            int             `json:"weeks"`
	Days             int             `json:"days"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	SecurityDeposit  decimal.Decimal `json:"security_deposit"`
	ReservationID    string          `json:"reservation_id"`
}

// PickupRecord documents goods leaving the vendor.
type PickupRecord struct {
	DocumentNumber string    `json:"document_number"`
	PickedUpBy     string    `json:"picked_up_by"`
	Notes          string    `json:"notes,omitempty"`
	PickedUpAt     time.Time `json:"picked_up_at"`
}

// ReturnRecord documents goods coming back.
type ReturnRecord struct {
	DocumentNumber    string          `json:"document_number"`
	ReturnedBy        string          `json:"returned_by"`
	Condition         string          `json:"condition,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	DamageReported    bool            `json:"damage_reported"`
	DamageDescription string          `json:"damage_description,omitempty"`
	ReturnedAt        time.Time       `json:"returned_at"`
	DaysLate          int             `json:"days_late"`
	LateFee           decimal.Decimal `json:"late_fee"`
}

// Order is a customer's cart and, once confirmed, a rental order.
type Order struct {
	ID              string          `json:"id"`
	Number          string          `json:"order_number"`
	CustomerID      string          `json:"customer_id"`
	VendorID        string          `json:"vendor_id"`
	Status          Status          `json:"status"`
	Items           []Item          `json:"items"`
	RentalStart     *time.Time      `json:"rental_start,omitempty"`
	RentalEnd       *time.Time      `json:"rental_end,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	DeliveryCharges decimal.Decimal `json:"delivery_charges"`
	Discount        decimal.Decimal `json:"discount"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Total           decimal.Decimal `json:"total"`
	LateFee         decimal.Decimal `json:"late_fee"`
	DeliveryMethod  DeliveryMethod  `json:"delivery_method"`
	DeliveryAddress string          `json:"delivery_address"`
	BillingAddress  string          `json:"billing_address"`
	TermsAccepted   bool            `json:"terms_accepted"`
	CustomerNotes   string          `json:"customer_notes,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	Pickup          *PickupRecord   `json:"pickup,omitempty"`
	Return          *ReturnRecord   `json:"return,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Pricing carries the company settings totals depend on.
type Pricing struct {
	TaxRate        decimal.Decimal
	DeliveryCharge decimal.Decimal
}

// Item returns the item with the given id.
func (o *Order) Item(id string) (*Item, bool) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// RentalWindow spans the earliest item start to the latest item end.
func (o *Order) RentalWindow() (period.Range, bool) {
	if len(o.Items) == 0 {
		return period.Range{}, false
	}
	w := o.Items[0].RentalPeriod
	for _, it := range o.Items[1:] {
		if it.RentalPeriod.Start.Before(w.Start) {
			w.Start = it.RentalPeriod.Start
		}
		if it.RentalPeriod.End.After(w.End) {
			w.End = it.RentalPeriod.End
		}
	}
	return w, true
}

// Recompute derives line taxes and all order totals from the items, the
// current discount and p. Calling it twice yields the same result.
func (o *Order) Recompute(p Pricing) {
	subtotal, tax, deposit := decimal.Zero, decimal.Zero, decimal.Zero
	for i := range o.Items {
		it := &o.Items[i]
		it.Tax = pricing.Tax(it.Subtotal, p.TaxRate)
		it.Total = it.Subtotal.Add(it.Tax)
		subtotal = subtotal.Add(it.Subtotal)
		tax = tax.Add(it.Tax)
		deposit = deposit.Add(it.SecurityDeposit)
	}

	o.Subtotal = subtotal.Round(2)
	o.Tax = tax.Round(2)
	o.SecurityDeposit = deposit.Round(2)

	o.DeliveryCharges = decimal.Zero
	if o.DeliveryMethod == DeliveryStandard && len(o.Items) > 0 {
		o.DeliveryCharges = p.DeliveryCharge.Round(2)
	}

	if o.Discount.IsNegative() {
		o.Discount = decimal.Zero
	}
	o.Discount = decimal.Min(o.Discount, o.Subtotal).Round(2)

	total := o.Subtotal.Add(o.Tax).Add(o.SecurityDeposit).Add(o.DeliveryCharges).Sub(o.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total.Round(2)

	if w, ok := o.RentalWindow(); ok {
		o.RentalStart, o.RentalEnd = &w.Start, &w.End
	} else {
		o.RentalStart, o.RentalEnd = nil, nil
	}
}

// FormatNumber renders an order number as S{YYYYMM}{seq:05d}.
func FormatNumber(at time.Time, seq int) string {
	return fmt.Sprintf("S%04d%02d%05d", at.Year(), int(at.Month()), seq)
}

// Scope restricts access to orders of one customer or one vendor. The zero
// Scope allows everything.
type Scope struct {
	CustomerID string
	VendorID   string
}

// Allows reports whether o is visible within the scope.
func (s Scope) Allows(o *Order) bool {
	if s.CustomerID != "" && o.CustomerID != s.CustomerID {
		return false
	}
	if s.VendorID != "" && o.VendorID != s.VendorID {
		return false
	}
	return true
}

// Filter narrows order listings. Zero values match everything.
type Filter struct {
	CustomerID    string
	VendorID      string
	Statuses      []Status
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	EndsAfter     *time.Time
	EndsBefore    *time.Time
	Page          int
	PerPage       int
}

// Repository defines persistence operations for orders. Implementations join
// the transaction carried by ctx when there is one.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	// FindOpenCart returns the customer's draft or quotation order for the
	// vendor, locked for update.
	FindOpenCart(ctx context.Context, customerID, vendorID string) (*Order, error)
	// Update persists the order header: status, totals, addresses, coupon,
	// timestamps, late fee and records.
	Update(ctx context.Context, o *Order) error
	AddItem(ctx context.Context, it *Item) error
	UpdateItem(ctx context.Context, it *Item) error
	RemoveItem(ctx context.Context, orderID, itemID string) error
	List(ctx context.Context, f Filter) ([]Order, int, error)
	// NextNumber allocates the next order sequence value for at's month.
	NextNumber(ctx context.Context, at time.Time) (int, error)
}

// Transactor runs fn in one database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
