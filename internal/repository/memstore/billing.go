package memstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/rental-ledger/internal/domain/invoice"
	"github.com/xenking/rental-ledger/internal/domain/order"
	"github.com/xenking/rental-ledger/internal/domain/payment"
)

var (
	_ order.Repository   = (*Orders)(nil)
	_ invoice.Repository = (*Invoices)(nil)
	_ payment.Repository = (*Payments)(nil)
)

// Orders implements order.Repository.
type Orders struct{ s *Store }

func (r *Orders) Create(ctx context.Context, o *order.Order) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return errors.Errorf("order %s already exists", o.ID)
		}
		h := *o
		h.Items = nil
		st.orders[o.ID] = h
		st.items[o.ID] = slices.Clone(o.Items)
		return nil
	})
}

func (r *Orders) load(st *state, id string) (*order.Order, error) {
	h, ok := st.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	h.Items = slices.Clone(st.items[id])
	return &h, nil
}

func (r *Orders) Get(ctx context.Context, id string) (*order.Order, error) {
	var out *order.Order
	err := r.s.do(ctx, func(st *state) error {
		o, err := r.load(st, id)
		out = o
		return err
	})
	return out, err
}

func (r *Orders) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.Get(ctx, id)
}

func (r *Orders) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	var out *order.Order
	err := r.s.do(ctx, func(st *state) error {
		for id, h := range st.orders {
			if h.Number == number {
				o, err := r.load(st, id)
				out = o
				return err
			}
		}
		return order.ErrNotFound
	})
	return out, err
}

func (r *Orders) FindOpenCart(ctx context.Context, customerID, vendorID string) (*order.Order, error) {
	var out *order.Order
	err := r.s.do(ctx, func(st *state) error {
		for id, h := range st.orders {
			if h.CustomerID == customerID && h.VendorID == vendorID && h.Status.Editable() {
				o, err := r.load(st, id)
				out = o
				return err
			}
		}
		return order.ErrNotFound
	})
	return out, err
}

func (r *Orders) Update(ctx context.Context, o *order.Order) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.orders[o.ID]; !ok {
			return order.ErrNotFound
		}
		h := *o
		h.Items = nil
		st.orders[o.ID] = h

		items := slices.Clone(st.items[o.ID])
		for _, it := range o.Items {
			if i := slices.IndexFunc(items, func(x order.Item) bool { return x.ID == it.ID }); i >= 0 {
				items[i] = it
			}
		}
		st.items[o.ID] = items
		return nil
	})
}

func (r *Orders) AddItem(ctx context.Context, it *order.Item) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.orders[it.OrderID]; !ok {
			return order.ErrNotFound
		}
		st.items[it.OrderID] = append(st.items[it.OrderID], *it)
		return nil
	})
}

func (r *Orders) UpdateItem(ctx context.Context, it *order.Item) error {
	return r.s.do(ctx, func(st *state) error {
		items := st.items[it.OrderID]
		for i := range items {
			if items[i].ID == it.ID {
				items[i] = *it
				return nil
			}
		}
		return order.ErrItemNotFound
	})
}

func (r *Orders) RemoveItem(ctx context.Context, orderID, itemID string) error {
	return r.s.do(ctx, func(st *state) error {
		items := st.items[orderID]
		idx := slices.IndexFunc(items, func(it order.Item) bool { return it.ID == itemID })
		if idx < 0 {
			return order.ErrItemNotFound
		}
		st.items[orderID] = slices.Delete(slices.Clone(items), idx, idx+1)
		return nil
	})
}

func (r *Orders) List(ctx context.Context, f order.Filter) ([]order.Order, int, error) {
	var out []order.Order
	err := r.s.do(ctx, func(st *state) error {
		for id, h := range st.orders {
			if !matchOrder(h, f) {
				continue
			}
			o, err := r.load(st, id)
			if err != nil {
				return err
			}
			out = append(out, *o)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(out, func(a, b order.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareStrings(a.Number, b.Number)
	})
	return page(out, f.Page, f.PerPage), len(out), nil
}

func (r *Orders) NextNumber(ctx context.Context, at time.Time) (int, error) {
	var n int
	err := r.s.do(ctx, func(st *state) error {
		n = r.s.next(st, monthKey("order", at))
		return nil
	})
	return n, err
}

func matchOrder(o order.Order, f order.Filter) bool {
	if f.CustomerID != "" && o.CustomerID != f.CustomerID {
		return false
	}
	if f.VendorID != "" && o.VendorID != f.VendorID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
		return false
	}
	if f.CreatedAfter != nil && o.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !o.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if f.EndsAfter != nil && (o.RentalEnd == nil || !o.RentalEnd.After(*f.EndsAfter)) {
		return false
	}
	if f.EndsBefore != nil && (o.RentalEnd == nil || o.RentalEnd.After(*f.EndsBefore)) {
		return false
	}
	return true
}

func monthKey(prefix string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s:%04d%02d", prefix, at.Year(), int(at.Month()))
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Invoices implements invoice.Repository.
type Invoices struct{ s *Store }

func (r *Invoices) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.s.do(ctx, func(st *state) error {
		for _, existing := range st.invoices {
			if existing.OrderID == inv.OrderID {
				return errors.Errorf("invoice for order %s already exists", inv.OrderID)
			}
		}
		c := *inv
		c.Lines = slices.Clone(inv.Lines)
		st.invoices[inv.ID] = c
		return nil
	})
}

func (r *Invoices) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	var out *invoice.Invoice
	err := r.s.do(ctx, func(st *state) error {
		inv, ok := st.invoices[id]
		if !ok {
			return invoice.ErrNotFound
		}
		inv.Lines = slices.Clone(inv.Lines)
		out = &inv
		return nil
	})
	return out, err
}

func (r *Invoices) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.Get(ctx, id)
}

func (r *Invoices) GetByOrder(ctx context.Context, orderID string) (*invoice.Invoice, error) {
	var out *invoice.Invoice
	err := r.s.do(ctx, func(st *state) error {
		for _, inv := range st.invoices {
			if inv.OrderID == orderID {
				inv.Lines = slices.Clone(inv.Lines)
				out = &inv
				return nil
			}
		}
		return invoice.ErrNotFound
	})
	return out, err
}

func (r *Invoices) Update(ctx context.Context, inv *invoice.Invoice) error {
	return r.s.do(ctx, func(st *state) error {
		cur, ok := st.invoices[inv.ID]
		if !ok {
			return invoice.ErrNotFound
		}
		cur.Status = inv.Status
		cur.AmountPaid = inv.AmountPaid
		cur.AmountDue = inv.AmountDue
		cur.UpdatedAt = inv.UpdatedAt
		st.invoices[inv.ID] = cur
		return nil
	})
}

func (r *Invoices) List(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, int, error) {
	var out []invoice.Invoice
	err := r.s.do(ctx, func(st *state) error {
		for _, inv := range st.invoices {
			if f.CustomerID != "" && inv.Customer.ID != f.CustomerID {
				continue
			}
			if f.VendorID != "" && inv.Vendor.ID != f.VendorID {
				continue
			}
			if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, inv.Status) {
				continue
			}
			out = append(out, inv)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(out, func(a, b invoice.Invoice) int { return compareStrings(a.Number, b.Number) })
	return page(out, f.Page, f.PerPage), len(out), nil
}

func (r *Invoices) NextNumber(ctx context.Context, year int) (int, error) {
	var n int
	err := r.s.do(ctx, func(st *state) error {
		n = r.s.next(st, fmt.Sprintf("invoice:%d", year))
		return nil
	})
	return n, err
}

// Payments implements payment.Repository.
type Payments struct{ s *Store }

func (r *Payments) Create(ctx context.Context, p *payment.Payment) error {
	return r.s.do(ctx, func(st *state) error {
		if err := uniqueGatewayPayment(st, p); err != nil {
			return err
		}
		st.payments[p.ID] = *p
		return nil
	})
}

func (r *Payments) Get(ctx context.Context, id string) (*payment.Payment, error) {
	var out *payment.Payment
	err := r.s.do(ctx, func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return payment.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *Payments) GetByGatewayOrderForUpdate(ctx context.Context, gatewayOrderID string) (*payment.Payment, error) {
	var out *payment.Payment
	err := r.s.do(ctx, func(st *state) error {
		for _, p := range st.payments {
			if p.GatewayOrderID == gatewayOrderID {
				out = &p
				return nil
			}
		}
		return payment.ErrNotFound
	})
	return out, err
}

func (r *Payments) Update(ctx context.Context, p *payment.Payment) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.payments[p.ID]; !ok {
			return payment.ErrNotFound
		}
		if err := uniqueGatewayPayment(st, p); err != nil {
			return err
		}
		st.payments[p.ID] = *p
		return nil
	})
}

func (r *Payments) List(ctx context.Context, f payment.Filter) ([]payment.Payment, error) {
	var out []payment.Payment
	err := r.s.do(ctx, func(st *state) error {
		for _, p := range st.payments {
			if f.InvoiceID != "" && p.InvoiceID != f.InvoiceID {
				continue
			}
			if f.CustomerID != "" && p.CustomerID != f.CustomerID {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b payment.Payment) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, err
}

func (r *Payments) NextNumber(ctx context.Context, at time.Time) (int, error) {
	var n int
	err := r.s.do(ctx, func(st *state) error {
		n = r.s.next(st, monthKey("payment", at))
		return nil
	})
	return n, err
}

func uniqueGatewayPayment(st *state, p *payment.Payment) error {
	if p.GatewayPaymentID == "" {
		return nil
	}
	for id, other := range st.payments {
		if id != p.ID && other.GatewayPaymentID == p.GatewayPaymentID {
			return errors.Errorf("gateway payment %s already recorded", p.GatewayPaymentID)
		}
	}
	return nil
}
