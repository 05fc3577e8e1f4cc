// Package report aggregates revenue and order activity for the admin and
// vendor dashboards.
package report

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxChartDays bounds the revenue chart window.
	MaxChartDays = 365

	day = 24 * time.Hour
	// returnSoon is how far ahead a rental end counts as a pending return.
	returnSoon = day
	// trailingWeek and trailingMonth are the revenue windows ending today.
	trailingWeek  = 7 * day
	trailingMonth = 30 * day
)

// ErrInvalidWindow is returned for a chart window outside 1..MaxChartDays.
var ErrInvalidWindow = errors.New("chart window must be between 1 and 365 days")

// OrderCounts summarizes order activity. Draft carts are never counted.
type OrderCounts struct {
	Total          int `json:"total_orders"`
	ActiveRentals  int `json:"active_rentals"`
	PendingPickups int `json:"pending_pickups"`
	PendingReturns int `json:"pending_returns"`
	OverdueReturns int `json:"overdue_returns"`
}

// PartyCounts counts catalog and customer base. Vendors is only filled for
// the platform-wide dashboard.
type PartyCounts struct {
	Products  int `json:"total_products"`
	Customers int `json:"total_customers"`
	Vendors   int `json:"total_vendors,omitempty"`
}

// Dashboard is the headline view for an admin or a single vendor.
type Dashboard struct {
	VendorID     string          `json:"vendor_id,omitempty"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TodayRevenue decimal.Decimal `json:"today_revenue"`
	WeekRevenue  decimal.Decimal `json:"week_revenue"`
	MonthRevenue decimal.Decimal `json:"month_revenue"`
	OrderCounts
	PartyCounts
	GeneratedAt time.Time `json:"generated_at"`
}

// RevenuePoint is the completed payment total of one UTC day.
type RevenuePoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

// TopProduct ranks a product by how often it was rented.
type TopProduct struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	RentalCount int             `json:"rental_count"`
	Units       int             `json:"units"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// VendorPerformance ranks a vendor by collected revenue.
type VendorPerformance struct {
	VendorID     string          `json:"vendor_id"`
	VendorName   string          `json:"vendor_name"`
	TotalOrders  int             `json:"total_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// Repository runs the aggregate queries. An empty vendorID means all vendors.
type Repository interface {
	// CollectedRevenue sums amount_paid over paid and partially paid invoices.
	CollectedRevenue(ctx context.Context, vendorID string) (decimal.Decimal, error)
	// PaymentRevenue sums completed payments with paid_at in [from, to).
	PaymentRevenue(ctx context.Context, vendorID string, from, to time.Time) (decimal.Decimal, error)
	// DailyRevenue returns completed payment totals per UTC day in [from, to).
	// Days without payments are omitted.
	DailyRevenue(ctx context.Context, vendorID string, from, to time.Time) ([]RevenuePoint, error)
	// OrderCounts counts orders; rentals ending before now are overdue and
	// those ending at or before soon are pending returns.
	OrderCounts(ctx context.Context, vendorID string, now, soon time.Time) (OrderCounts, error)
	// PartyCounts counts products and customers. For a vendor, customers are
	// the distinct customers of its orders.
	PartyCounts(ctx context.Context, vendorID string) (PartyCounts, error)
	// TopProducts ranks products of non-draft, non-quotation, non-cancelled
	// orders by item count.
	TopProducts(ctx context.Context, vendorID string, limit int) ([]TopProduct, error)
	// VendorPerformance ranks vendors by collected revenue.
	VendorPerformance(ctx context.Context, limit int) ([]VendorPerformance, error)
}

// Service builds dashboards from the repository aggregates.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a report Service. A nil now means time.Now.
func NewService(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

// AdminDashboard returns platform-wide figures.
func (s *Service) AdminDashboard(ctx context.Context) (*Dashboard, error) {
	return s.dashboard(ctx, "")
}

// VendorDashboard returns figures for one vendor's orders and products.
func (s *Service) VendorDashboard(ctx context.Context, vendorID string) (*Dashboard, error) {
	if vendorID == "" {
		return nil, errors.New("vendor id is required")
	}
	d, err := s.dashboard(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	d.Vendors = 0
	return d, nil
}

// dashboard runs the independent aggregates concurrently.
func (s *Service) dashboard(ctx context.Context, vendorID string) (*Dashboard, error) {
	now := s.now().UTC()
	today := now.Truncate(day)
	d := &Dashboard{VendorID: vendorID, GeneratedAt: now}

	g, ctx := errgroup.WithContext(ctx)
	run := func(name string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				return errors.Wrap(err, name)
			}
			return nil
		})
	}
	run("collected revenue", func() (err error) {
		d.TotalRevenue, err = s.repo.CollectedRevenue(ctx, vendorID)
		return err
	})
	for _, w := range []struct {
		name string
		from time.Time
		dst  *decimal.Decimal
	}{
		{"today revenue", today, &d.TodayRevenue},
		{"week revenue", today.Add(-trailingWeek), &d.WeekRevenue},
		{"month revenue", today.Add(-trailingMonth), &d.MonthRevenue},
	} {
		run(w.name, func() (err error) {
			*w.dst, err = s.repo.PaymentRevenue(ctx, vendorID, w.from, now)
			return err
		})
	}
	run("order counts", func() (err error) {
		d.OrderCounts, err = s.repo.OrderCounts(ctx, vendorID, now, now.Add(returnSoon))
		return err
	})
	run("party counts", func() (err error) {
		d.PartyCounts, err = s.repo.PartyCounts(ctx, vendorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// RevenueChart returns one point per UTC day for the last days days,
// today included. Days without payments report zero.
func (s *Service) RevenueChart(ctx context.Context, vendorID string, days int) ([]RevenuePoint, error) {
	if days < 1 || days > MaxChartDays {
		return nil, ErrInvalidWindow
	}
	today := s.now().UTC().Truncate(day)
	from := today.Add(-time.Duration(days-1) * day)

	got, err := s.repo.DailyRevenue(ctx, vendorID, from, today.Add(day))
	if err != nil {
		return nil, errors.Wrap(err, "daily revenue")
	}
	byDate := make(map[string]decimal.Decimal, len(got))
	for _, p := range got {
		byDate[p.Date] = p.Revenue
	}

	out := make([]RevenuePoint, days)
	for i := range out {
		date := from.Add(time.Duration(i) * day).Format(time.DateOnly)
		out[i] = RevenuePoint{Date: date, Revenue: byDate[date]}
	}
	return out, nil
}

// TopProducts returns the most rented products, limited to limit entries.
func (s *Service) TopProducts(ctx context.Context, vendorID string, limit int) ([]TopProduct, error) {
	out, err := s.repo.TopProducts(ctx, vendorID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}
	return out, nil
}

// VendorPerformance returns the top vendors by collected revenue.
func (s *Service) VendorPerformance(ctx context.Context, limit int) ([]VendorPerformance, error) {
	out, err := s.repo.VendorPerformance(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "vendor performance")
	}
	return out, nil
}
