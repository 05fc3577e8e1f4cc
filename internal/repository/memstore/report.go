package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/rental-ledger/internal/domain/invoice"
	"github.com/xenking/rental-ledger/internal/domain/order"
	"github.com/xenking/rental-ledger/internal/domain/party"
	"github.com/xenking/rental-ledger/internal/domain/payment"
	"github.com/xenking/rental-ledger/internal/domain/report"
)

var _ report.Repository = (*Reports)(nil)

// Reports implements report.Repository by scanning the in-memory state.
type Reports struct{ s *Store }

func (r *Reports) CollectedRevenue(ctx context.Context, vendorID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := r.s.do(ctx, func(st *state) error {
		for _, inv := range st.invoices {
			if vendorID != "" && inv.Vendor.ID != vendorID {
				continue
			}
			if inv.Status == invoice.StatusPaid || inv.Status == invoice.StatusPartiallyPaid {
				sum = sum.Add(inv.AmountPaid)
			}
		}
		return nil
	})
	return sum, err
}

// completed calls fn for every completed payment of vendorID paid in [from, to).
func completed(st *state, vendorID string, from, to time.Time, fn func(p payment.Payment)) {
	for _, p := range st.payments {
		if p.Status != payment.StatusCompleted || p.PaidAt == nil {
			continue
		}
		if p.PaidAt.Before(from) || !p.PaidAt.Before(to) {
			continue
		}
		if vendorID != "" && st.invoices[p.InvoiceID].Vendor.ID != vendorID {
			continue
		}
		fn(p)
	}
}

func (r *Reports) PaymentRevenue(ctx context.Context, vendorID string, from, to time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := r.s.do(ctx, func(st *state) error {
		completed(st, vendorID, from, to, func(p payment.Payment) { sum = sum.Add(p.Amount) })
		return nil
	})
	return sum, err
}

func (r *Reports) DailyRevenue(ctx context.Context, vendorID string, from, to time.Time) ([]report.RevenuePoint, error) {
	byDate := map[string]decimal.Decimal{}
	err := r.s.do(ctx, func(st *state) error {
		completed(st, vendorID, from, to, func(p payment.Payment) {
			date := p.PaidAt.UTC().Format(time.DateOnly)
			byDate[date] = byDate[date].Add(p.Amount)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]report.RevenuePoint, 0, len(byDate))
	for _, date := range slices.Sorted(maps.Keys(byDate)) {
		out = append(out, report.RevenuePoint{Date: date, Revenue: byDate[date]})
	}
	return out, nil
}

func (r *Reports) OrderCounts(ctx context.Context, vendorID string, now, soon time.Time) (report.OrderCounts, error) {
	var c report.OrderCounts
	err := r.s.do(ctx, func(st *state) error {
		for _, o := range st.orders {
			if o.Status == order.StatusDraft || (vendorID != "" && o.VendorID != vendorID) {
				continue
			}
			c.Total++
			switch o.Status {
			case order.StatusConfirmed:
				c.PendingPickups++
			case order.StatusPickedUp:
				c.ActiveRentals++
				if o.RentalEnd == nil {
					continue
				}
				if !o.RentalEnd.After(soon) {
					c.PendingReturns++
				}
				if o.RentalEnd.Before(now) {
					c.OverdueReturns++
				}
			}
		}
		return nil
	})
	return c, err
}

func (r *Reports) PartyCounts(ctx context.Context, vendorID string) (report.PartyCounts, error) {
	var c report.PartyCounts
	err := r.s.do(ctx, func(st *state) error {
		for _, p := range st.products {
			if vendorID == "" || p.VendorID == vendorID {
				c.Products++
			}
		}
		for _, p := range st.parties {
			switch p.Role {
			case party.RoleVendor:
				c.Vendors++
			case party.RoleCustomer:
				if vendorID == "" {
					c.Customers++
				}
			}
		}
		if vendorID != "" {
			customers := map[string]bool{}
			for _, o := range st.orders {
				if o.VendorID == vendorID && o.Status != order.StatusDraft {
					customers[o.CustomerID] = true
				}
			}
			c.Customers = len(customers)
		}
		return nil
	})
	return c, err
}

func (r *Reports) TopProducts(ctx context.Context, vendorID string, limit int) ([]report.TopProduct, error) {
	byProduct := map[string]*report.TopProduct{}
	err := r.s.do(ctx, func(st *state) error {
		for id, o := range st.orders {
			switch o.Status {
			case order.StatusDraft, order.StatusQuotation, order.StatusCancelled:
				continue
			}
			for _, it := range st.items[id] {
				p, ok := st.products[it.ProductID]
				if !ok || (vendorID != "" && p.VendorID != vendorID) {
					continue
				}
				tp := byProduct[it.ProductID]
				if tp == nil {
					tp = &report.TopProduct{ProductID: p.ID, ProductName: p.Name, Revenue: decimal.Zero}
					byProduct[it.ProductID] = tp
				}
				tp.RentalCount++
				tp.Units += it.Quantity
				tp.Revenue = tp.Revenue.Add(it.Total)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]report.TopProduct, 0, len(byProduct))
	for _, tp := range byProduct {
		out = append(out, *tp)
	}
	slices.SortFunc(out, func(a, b report.TopProduct) int {
		if c := cmp.Compare(b.RentalCount, a.RentalCount); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return out[:min(limit, len(out))], nil
}

func (r *Reports) VendorPerformance(ctx context.Context, limit int) ([]report.VendorPerformance, error) {
	byVendor := map[string]*report.VendorPerformance{}
	err := r.s.do(ctx, func(st *state) error {
		paid := make(map[string]decimal.Decimal, len(st.invoices))
		for _, inv := range st.invoices {
			paid[inv.OrderID] = inv.AmountPaid
		}
		for id, o := range st.orders {
			v, ok := st.parties[o.VendorID]
			if !ok || v.Role != party.RoleVendor || o.Status == order.StatusDraft {
				continue
			}
			vp := byVendor[v.ID]
			if vp == nil {
				name := v.CompanyName
				if name == "" {
					name = v.Name
				}
				vp = &report.VendorPerformance{VendorID: v.ID, VendorName: name, TotalRevenue: decimal.Zero}
				byVendor[v.ID] = vp
			}
			vp.TotalOrders++
			vp.TotalRevenue = vp.TotalRevenue.Add(paid[id])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]report.VendorPerformance, 0, len(byVendor))
	for _, vp := range byVendor {
		out = append(out, *vp)
	}
	slices.SortFunc(out, func(a, b report.VendorPerformance) int {
		if c := b.TotalRevenue.Cmp(a.TotalRevenue); c != 0 {
			return c
		}
		return cmp.Compare(a.VendorID, b.VendorID)
	})
	return out[:min(limit, len(out))], nil
}
