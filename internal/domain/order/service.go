package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/rental-ledger/internal/domain/coupon"
	"github.com/xenking/rental-ledger/internal/domain/event"
	"github.com/xenking/rental-ledger/internal/domain/inventory"
	"github.com/xenking/rental-ledger/internal/domain/invoice"
	"github.com/xenking/rental-ledger/internal/domain/period"
	"github.com/xenking/rental-ledger/internal/domain/pricing"
	"github.com/xenking/rental-ledger/internal/domain/product"
)

// Ledger is the inventory surface the order aggregate drives.
type Ledger interface {
	Reserve(ctx context.Context, req inventory.ReserveRequest) (*inventory.Reservation, error)
	Confirm(ctx context.Context, holdID string, req inventory.ReserveRequest) (*inventory.Reservation, error)
	Release(ctx context.Context, id string) error
	Commit(ctx context.Context, id string) error
	Fulfill(ctx context.Context, id string) error
}

// Invoicer issues and voids order invoices.
type Invoicer interface {
	Generate(ctx context.Context, src invoice.Source) (*invoice.Invoice, error)
	GetByOrder(ctx context.Context, orderID string) (*invoice.Invoice, error)
	CancelForOrder(ctx context.Context, orderID string) error
}

// Settings are the company rules applied to orders.
type Settings struct {
	Pricing Pricing
	LateFee pricing.LateFeeRule
}

// Deps are the collaborators of Service.
type Deps struct {
	Tx       Transactor
	Orders   Repository
	Products product.Repository
	Ledger   Ledger
	Coupons  coupon.Validator
	Invoices Invoicer
	Events   event.Publisher
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Service implements the cart and order lifecycle. Every mutating call runs
// in one transaction; on error nothing is persisted.
type Service struct {
	tx       Transactor
	orders   Repository
	products product.Repository
	ledger   Ledger
	coupons  coupon.Validator
	invoices Invoicer
	events   event.Publisher
	settings Settings
	now      func() time.Time
}

// NewService creates an order Service.
func NewService(d Deps, settings Settings) *Service {
	events := d.Events
	if events == nil {
		events = event.Nop{}
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		tx:       d.Tx,
		orders:   d.Orders,
		products: d.Products,
		ledger:   d.Ledger,
		coupons:  d.Coupons,
		invoices: d.Invoices,
		events:   events,
		settings: settings,
		now:      now,
	}
}

// AddItemRequest adds a product to the customer's cart.
type AddItemRequest struct {
	CustomerID       string
	ProductID        string
	Quantity         int
	RentalPeriod     period.Range
	RentalPeriodType string
}

// AddToCart prices the item, places an expiring hold and appends it to the
// customer's open cart for the product's vendor, creating the cart if needed.
func (s *Service) AddToCart(ctx context.Context, req AddItemRequest) (*Order, error) {
	if req.Quantity <= 0 {
		return nil, pricing.ErrInvalidQuantity
	}
	if err := req.RentalPeriod.Validate(); err != nil {
		return nil, err
	}

	var out *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.products.GetByID(ctx, req.ProductID)
		if err != nil {
			return errors.Wrap(err, "get product")
		}
		quote, err := pricing.Price(p.Rates, req.RentalPeriod, req.Quantity)
		if err != nil {
			return err
		}

		o, err := s.orders.FindOpenCart(ctx, req.CustomerID, p.VendorID)
		switch {
		case errors.Is(err, ErrNotFound):
			if o, err = s.newCart(ctx, req.CustomerID, p.VendorID); err != nil {
				return err
			}
		case err != nil:
			return errors.Wrap(err, "find cart")
		}

		it := Item{
			ID:               uuid.New().String(),
			OrderID:          o.ID,
			ProductID:        p.ID,
			ProductName:      p.Name,
			ProductSKU:       p.SKU,
			Quantity:         req.Quantity,
			RentalPeriod:     req.RentalPeriod,
			RentalPeriodType: req.RentalPeriodType,
			Basis:            quote.Basis,
			Months:           quote.Months,
			Weeks:            quote.Weeks,
			Days:             quote.Days,
			UnitPrice:        quote.UnitPrice,
			Subtotal:         quote.Subtotal,
			SecurityDeposit:  p.SecurityDeposit.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2),
		}

		res, err := s.ledger.Reserve(ctx, inventory.ReserveRequest{
			ProductID:   p.ID,
			OrderID:     o.ID,
			OrderItemID: it.ID,
			Range:       req.RentalPeriod,
			Quantity:    req.Quantity,
		})
		if err != nil {
			return err
		}
		it.ReservationID = res.ID

		o.Items = append(o.Items, it)
		if err := s.reprice(ctx, o); err != nil {
			return err
		}
		// Tax and total are only known after repricing.
		added := o.Items[len(o.Items)-1]
		if err := s.orders.AddItem(ctx, &added); err != nil {
			return errors.Wrap(err, "add item")
		}
		if err := s.save(ctx, o); err != nil {
			return err
		}

		zctx.From(ctx).Info("Item added to cart",
			zap.String("order_id", o.ID),
			zap.String("product_id", p.ID),
			zap.Int("quantity", req.Quantity),
		)
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveItem releases the item's hold and drops it from the cart.
func (s *Service) RemoveItem(ctx context.Context, customerID, itemID string) (*Order, error) {
	var out *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.findCartByItem(ctx, customerID, itemID)
		if err != nil {
			return err
		}
		if !o.Status.Editable() {
			return ErrNotEditable
		}

		idx := -1
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrItemNotFound
		}
		it := o.Items[idx]

		if it.ReservationID != "" {
			if err := s.ledger.Release(ctx, it.ReservationID); err != nil {
				return errors.Wrap(err, "release reservation")
			}
		}
		if err := s.orders.RemoveItem(ctx, o.ID, itemID); err != nil {
			return errors.Wrap(err, "remove item")
		}
		o.Items = append(o.Items[:idx], o.Items[idx+1:]...)

		if err := s.repriceAndSave(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyCoupon evaluates code against the cart and stores it. Nothing is
// redeemed until confirmation.
func (s *Service) ApplyCoupon(ctx context.Context, customerID, orderID, code string) (*Order, error) {
	return s.editCart(ctx, Scope{CustomerID: customerID}, orderID, func(ctx context.Context, o *Order) error {
		o.Recompute(s.settings.Pricing)
		d, err := s.coupons.Evaluate(ctx, code, o.CustomerID, o.Subtotal)
		if err != nil {
			return err
		}
		o.CouponCode = coupon.Normalize(code)
		o.Discount = d.Amount
		o.Recompute(s.settings.Pricing)
		return nil
	})
}

// ClearCoupon removes the coupon from the cart.
func (s *Service) ClearCoupon(ctx context.Context, customerID, orderID string) (*Order, error) {
	return s.editCart(ctx, Scope{CustomerID: customerID}, orderID, func(_ context.Context, o *Order) error {
		o.CouponCode = ""
		o.Discount = decimal.Zero
		o.Recompute(s.settings.Pricing)
		return nil
	})
}

// Quote moves a draft order to quotation.
func (s *Service) Quote(ctx context.Context, scope Scope, orderID string) (*Order, error) {
	var out *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.lockScoped(ctx, scope, orderID)
		if err != nil {
			return err
		}
		if len(o.Items) == 0 {
			return ErrEmptyOrder
		}
		if err := o.transition(StatusQuotation); err != nil {
			return err
		}
		if err := s.save(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmRequest carries the checkout details collected at confirmation.
// Empty fields keep the values already on the order.
type ConfirmRequest struct {
	OrderID         string
	CustomerID      string
	BillingAddress  string
	DeliveryAddress string
	DeliveryMethod  DeliveryMethod
	TermsAccepted   bool
	CustomerNotes   string
}

// Confirmation is the result of a confirm call.
type Confirmation struct {
	Order   *Order           `json:"order"`
	Invoice *invoice.Invoice `json:"invoice"`
	// Replayed is true when the order was already confirmed.
	Replayed bool `json:"replayed"`
}

// Confirm pins every reservation, redeems the coupon and issues the invoice.
// Availability is re-checked excluding the order's own holds; if any item
// can no longer be covered the whole call fails with StaleAvailabilityError.
// Confirming an already confirmed order returns it with its invoice.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	var out Confirmation
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.lockScoped(ctx, Scope{CustomerID: req.CustomerID}, req.OrderID)
		if err != nil {
			return err
		}

		switch o.Status {
		case StatusConfirmed, StatusPickedUp, StatusReturned:
			inv, err := s.invoices.Generate(ctx, s.invoiceSource(o))
			if err != nil {
				return errors.Wrap(err, "get invoice")
			}
			out = Confirmation{Order: o, Invoice: inv, Replayed: true}
			return nil
		case StatusCancelled:
			return &IllegalTransitionError{OrderID: o.ID, From: o.Status, To: StatusConfirmed}
		}
		if len(o.Items) == 0 {
			return ErrEmptyOrder
		}

		applyCheckout(o, req)
		if err := validateCheckout(o); err != nil {
			return err
		}

		if o.Status == StatusDraft {
			if err := o.transition(StatusQuotation); err != nil {
				return err
			}
		}

		var stale []StaleItem
		for i := range o.Items {
			it := &o.Items[i]
			res, err := s.ledger.Confirm(ctx, it.ReservationID, inventory.ReserveRequest{
				ProductID:   it.ProductID,
				OrderID:     o.ID,
				OrderItemID: it.ID,
				Range:       it.RentalPeriod,
				Quantity:    it.Quantity,
			})
			var stockErr *inventory.InsufficientStockError
			if errors.As(err, &stockErr) {
				stale = append(stale, StaleItem{
					ItemID:    it.ID,
					ProductID: it.ProductID,
					Requested: it.Quantity,
					Available: stockErr.Available,
				})
				continue
			}
			if err != nil {
				return errors.Wrapf(err, "confirm reservation for item %s", it.ID)
			}
			if res.ID != it.ReservationID {
				it.ReservationID = res.ID
				if err := s.orders.UpdateItem(ctx, it); err != nil {
					return errors.Wrap(err, "update item")
				}
			}
		}
		if len(stale) > 0 {
			return &StaleAvailabilityError{OrderID: o.ID, Items: stale}
		}

		o.Recompute(s.settings.Pricing)
		if o.CouponCode != "" {
			d, err := s.coupons.Redeem(ctx, o.CouponCode, o.CustomerID, o.ID, o.Subtotal)
			if err != nil {
				return err
			}
			o.Discount = d.Amount
			o.Recompute(s.settings.Pricing)
		}

		if err := o.transition(StatusConfirmed); err != nil {
			return err
		}
		now := s.now()
		o.ConfirmedAt = &now
		if err := s.save(ctx, o); err != nil {
			return err
		}

		inv, err := s.invoices.Generate(ctx, s.invoiceSource(o))
		if err != nil {
			return errors.Wrap(err, "generate invoice")
		}

		zctx.From(ctx).Info("Order confirmed",
			zap.String("order_id", o.ID),
			zap.String("order_number", o.Number),
			zap.String("invoice_number", inv.Number),
			zap.String("total", o.Total.StringFixed(2)),
		)
		out = Confirmation{Order: o, Invoice: inv}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !out.Replayed {
		s.events.Publish(ctx, event.Event{Type: event.OrderConfirmed, Key: out.Order.ID, Payload: out.Order})
	}
	return &out, nil
}

// IssueInvoice returns the invoice of a confirmed order, generating it if it
// is missing.
func (s *Service) IssueInvoice(ctx context.Context, scope Scope, orderID string) (*invoice.Invoice, error) {
	var out *invoice.Invoice
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.lockScoped(ctx, scope, orderID)
		if err != nil {
			return err
		}
		switch o.Status {
		case StatusConfirmed, StatusPickedUp, StatusReturned:
		default:
			return &IllegalTransitionError{OrderID: o.ID, From: o.Status, To: StatusConfirmed}
		}
		out, err = s.invoices.Generate(ctx, s.invoiceSource(o))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PickupRequest records goods handed to the customer.
type PickupRequest struct {
	Scope      Scope
	OrderID    string
	PickedUpBy string
	Notes      string
}

// MarkPickup moves a confirmed order to picked_up and commits its
// reservations so they can no longer be released.
func (s *Service) MarkPickup(ctx context.Context, req PickupRequest) (*Order, error) {
	var out *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.lockScoped(ctx, req.Scope, req.OrderID)
		if err != nil {
			return err
		}
		if err := o.transition(StatusPickedUp); err != nil {
			return err
		}
		for _, it := range o.Items {
			if err := s.ledger.Commit(ctx, it.ReservationID); err != nil {
				return errors.Wrapf(err, "commit reservation for item %s", it.ID)
			}
		}
		o.Pickup = &PickupRecord{
			DocumentNumber: "PU-" + o.Number,
			PickedUpBy:     req.PickedUpBy,
			Notes:          req.Notes,
			PickedUpAt:     s.now(),
		}
		if err := s.save(ctx, o); err != nil {
			return err
		}
		zctx.From(ctx).Info("Order picked up", zap.String("order_id", o.ID))
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, event.Event{Type: event.OrderPickedUp, Key: out.ID, Payload: out})
	return out, nil
}

// ReturnRequest records goods coming back from the customer.
type ReturnRequest struct {
	Scope             Scope
	OrderID           string
	ReturnedBy        string
	Condition         string
	Notes             string
	DamageReported    bool
	DamageDescription string
}

// MarkReturn moves a picked-up order to returned, frees its stock and
// charges a late fee when the return is past the latest rental end.
func (s *Service) MarkReturn(ctx context.Context, req ReturnRequest) (*Order, error) {
	var out *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.lockScoped(ctx, req.Scope, req.OrderID)
		if err != nil {
			return err
		}
		if err := o.transition(StatusReturned); err != nil {
			return err
		}
		for _, it := range o.Items {
			if err := s.ledger.Fulfill(ctx, it.ReservationID); err != nil {
				return errors.Wrapf(err, "fulfill reservation for item %s", it.ID)
			}
		}

		now := s.now()
		rec := &ReturnRecord{
			DocumentNumber:    "RT-" + o.Number,
			ReturnedBy:        req.ReturnedBy,
			Condition:         req.Condition,
			Notes:             req.Notes,
			DamageReported:    req.DamageReported,
			DamageDescription: req.DamageDescription,
			ReturnedAt:        now,
			LateFee:           decimal.Zero,
		}
		if w, ok := o.RentalWindow(); ok {
			rec.DaysLate, rec.LateFee = s.settings.LateFee.Compute(w.End, now, o.Total)
		}
		o.Return = rec
		o.LateFee = rec.LateFee

		if err := s.save(ctx, o); err != nil {
			return err
		}
		zctx.From(ctx).Info("Order returned",
			zap.String("order_id", o.ID),
			zap.Int("days_late", rec.DaysLate),
			zap.String("late_fee", rec.LateFee.StringFixed(2)),
		)
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, event.Event{Type: event.OrderReturned, Key: out.ID, Payload: out})
	return out, nil
}

// CancelRequest cancels an order before pickup.
type CancelRequest struct {
	Scope   Scope
	OrderID string
	Reason  string
}

// Cancel releases every reservation and voids the invoice. Orders that were
// already picked up cannot be cancelled and are left unchanged.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (*Order, error) {
	var out *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.lockScoped(ctx, req.Scope, req.OrderID)
		if err != nil {
			return err
		}
		if err := o.transition(StatusCancelled); err != nil {
			return err
		}
		for _, it := range o.Items {
			if it.ReservationID == "" {
				continue
			}
			if err := s.ledger.Release(ctx, it.ReservationID); err != nil {
				return errors.Wrapf(err, "release reservation for item %s", it.ID)
			}
		}
		if err := s.invoices.CancelForOrder(ctx, o.ID); err != nil {
			return errors.Wrap(err, "cancel invoice")
		}
		o.CancelReason = req.Reason
		if err := s.save(ctx, o); err != nil {
			return err
		}
		zctx.From(ctx).Info("Order cancelled", zap.String("order_id", o.ID))
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, event.Event{Type: event.OrderCancelled, Key: out.ID, Payload: out})
	return out, nil
}

// Get returns an order visible within scope.
func (s *Service) Get(ctx context.Context, scope Scope, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(o) {
		return nil, ErrNotFound
	}
	return o, nil
}

// GetByNumber returns an order by its human number.
func (s *Service) GetByNumber(ctx context.Context, scope Scope, number string) (*Order, error) {
	o, err := s.orders.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(o) {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns a page of orders and the total count. Scope overrides the
// filter's party fields.
func (s *Service) List(ctx context.Context, scope Scope, f Filter) ([]Order, int, error) {
	if scope.CustomerID != "" {
		f.CustomerID = scope.CustomerID
	}
	if scope.VendorID != "" {
		f.VendorID = scope.VendorID
	}
	return s.orders.List(ctx, f)
}

// Carts returns the customer's open carts.
func (s *Service) Carts(ctx context.Context, customerID string) ([]Order, error) {
	orders, _, err := s.orders.List(ctx, Filter{
		CustomerID: customerID,
		Statuses:   []Status{StatusDraft, StatusQuotation},
	})
	return orders, err
}

// PendingPickups lists confirmed orders waiting to be handed over.
func (s *Service) PendingPickups(ctx context.Context, scope Scope) ([]Order, error) {
	orders, _, err := s.List(ctx, scope, Filter{Statuses: []Status{StatusConfirmed}})
	return orders, err
}

// UpcomingReturns lists picked-up orders due back within the window.
func (s *Service) UpcomingReturns(ctx context.Context, scope Scope, within time.Duration) ([]Order, error) {
	now := s.now()
	until := now.Add(within)
	orders, _, err := s.List(ctx, scope, Filter{
		Statuses:   []Status{StatusPickedUp},
		EndsAfter:  &now,
		EndsBefore: &until,
	})
	return orders, err
}

// Overdue lists picked-up orders past their rental end.
func (s *Service) Overdue(ctx context.Context, scope Scope) ([]Order, error) {
	now := s.now()
	orders, _, err := s.List(ctx, scope, Filter{
		Statuses:   []Status{StatusPickedUp},
		EndsBefore: &now,
	})
	return orders, err
}

func (s *Service) newCart(ctx context.Context, customerID, vendorID string) (*Order, error) {
	now := s.now()
	seq, err := s.orders.NextNumber(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "allocate order number")
	}
	o := &Order{
		ID:             uuid.New().String(),
		Number:         FormatNumber(now, seq),
		CustomerID:     customerID,
		VendorID:       vendorID,
		Status:         StatusDraft,
		DeliveryMethod: DeliveryPickup,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	o.Recompute(s.settings.Pricing)
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return o, nil
}

func (s *Service) findCartByItem(ctx context.Context, customerID, itemID string) (*Order, error) {
	carts, err := s.Carts(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "list carts")
	}
	for _, c := range carts {
		if _, ok := c.Item(itemID); ok {
			return s.lockScoped(ctx, Scope{CustomerID: customerID}, c.ID)
		}
	}
	return nil, ErrItemNotFound
}

func (s *Service) editCart(ctx context.Context, scope Scope, orderID string, fn func(ctx context.Context, o *Order) error) (*Order, error) {
	var out *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.lockScoped(ctx, scope, orderID)
		if err != nil {
			return err
		}
		if !o.Status.Editable() {
			return ErrNotEditable
		}
		if err := fn(ctx, o); err != nil {
			return err
		}
		if err := s.save(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) lockScoped(ctx context.Context, scope Scope, id string) (*Order, error) {
	o, err := s.orders.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(o) {
		return nil, ErrNotFound
	}
	return o, nil
}

// reprice recomputes totals and re-evaluates the coupon against the new
// subtotal. A coupon that no longer applies is dropped from the cart.
func (s *Service) reprice(ctx context.Context, o *Order) error {
	o.Recompute(s.settings.Pricing)
	if o.CouponCode == "" {
		return nil
	}
	d, err := s.coupons.Evaluate(ctx, o.CouponCode, o.CustomerID, o.Subtotal)
	switch {
	case coupon.IsRejection(err):
		zctx.From(ctx).Info("Coupon dropped from cart",
			zap.String("order_id", o.ID),
			zap.String("coupon", o.CouponCode),
			zap.Error(err),
		)
		o.CouponCode = ""
		o.Discount = decimal.Zero
	case err != nil:
		return errors.Wrap(err, "evaluate coupon")
	default:
		o.Discount = d.Amount
	}
	o.Recompute(s.settings.Pricing)
	return nil
}

func (s *Service) repriceAndSave(ctx context.Context, o *Order) error {
	if err := s.reprice(ctx, o); err != nil {
		return err
	}
	return s.save(ctx, o)
}

func (s *Service) save(ctx context.Context, o *Order) error {
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		return errors.Wrap(err, "update order")
	}
	return nil
}

func (s *Service) invoiceSource(o *Order) invoice.Source {
	src := invoice.Source{
		OrderID:         o.ID,
		OrderNumber:     o.Number,
		CustomerID:      o.CustomerID,
		VendorID:        o.VendorID,
		BillingAddress:  o.BillingAddress,
		DeliveryAddress: o.DeliveryAddress,
		TaxRate:         s.settings.Pricing.TaxRate,
		SecurityDeposit: o.SecurityDeposit,
		DeliveryCharges: o.DeliveryCharges,
		Discount:        o.Discount,
		CouponCode:      o.CouponCode,
	}
	if w, ok := o.RentalWindow(); ok {
		src.RentalPeriod = w
	}
	for _, it := range o.Items {
		src.Lines = append(src.Lines, invoice.SourceLine{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			Period:      it.RentalPeriod,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
			Tax:         it.Tax,
		})
	}
	return src
}

func applyCheckout(o *Order, req ConfirmRequest) {
	if req.BillingAddress != "" {
		o.BillingAddress = req.BillingAddress
	}
	if req.DeliveryAddress != "" {
		o.DeliveryAddress = req.DeliveryAddress
	}
	if req.DeliveryMethod != "" {
		o.DeliveryMethod = req.DeliveryMethod
	}
	if req.CustomerNotes != "" {
		o.CustomerNotes = req.CustomerNotes
	}
	if req.TermsAccepted {
		o.TermsAccepted = true
	}
}

func validateCheckout(o *Order) error {
	var missing []string
	if o.BillingAddress == "" {
		missing = append(missing, "billing_address")
	}
	if o.DeliveryMethod == DeliveryStandard && o.DeliveryAddress == "" {
		missing = append(missing, "delivery_address")
	}
	if len(missing) > 0 {
		return &InvalidAddressError{Fields: missing}
	}
	if !o.TermsAccepted {
		return ErrTermsNotAccepted
	}
	return nil
}
