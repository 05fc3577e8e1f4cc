package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/rental-ledger/internal/domain/report"
)

// Every query takes the vendor filter as a text parameter; '' matches all.
const (
	collectedRevenueSQL = `SELECT COALESCE(SUM(amount_paid), 0) FROM invoices
		WHERE status IN ('paid', 'partially_paid') AND ($1::text = '' OR vendor_id = $1)`

	paymentRevenueSQL = `SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p JOIN invoices i ON i.id = p.invoice_id
		WHERE p.status = 'completed' AND p.paid_at >= $2 AND p.paid_at < $3
			AND ($1::text = '' OR i.vendor_id = $1)`

	dailyRevenueSQL = `SELECT to_char(p.paid_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, SUM(p.amount)
		FROM payments p JOIN invoices i ON i.id = p.invoice_id
		WHERE p.status = 'completed' AND p.paid_at >= $2 AND p.paid_at < $3
			AND ($1::text = '' OR i.vendor_id = $1)
		GROUP BY day ORDER BY day`

	orderCountsSQL = `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'picked_up'),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'picked_up' AND rental_end <= $3),
			COUNT(*) FILTER (WHERE status = 'picked_up' AND rental_end < $2)
		FROM orders
		WHERE status <> 'draft' AND ($1::text = '' OR vendor_id = $1)`

	partyCountsSQL = `SELECT
			(SELECT COUNT(*) FROM products WHERE $1::text = '' OR vendor_id = $1),
			CASE WHEN $1::text = ''
				THEN (SELECT COUNT(*) FROM parties WHERE role = 'customer')
				ELSE (SELECT COUNT(DISTINCT customer_id) FROM orders WHERE vendor_id = $1 AND status <> 'draft')
			END,
			(SELECT COUNT(*) FROM parties WHERE role = 'vendor')`

	topProductsSQL = `SELECT oi.product_id, p.name, COUNT(oi.id), COALESCE(SUM(oi.quantity), 0),
			COALESCE(SUM(oi.total), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.status NOT IN ('draft', 'quotation', 'cancelled')
			AND ($1::text = '' OR p.vendor_id = $1)
		GROUP BY oi.product_id, p.name
		ORDER BY COUNT(oi.id) DESC, oi.product_id
		LIMIT $2`

	vendorPerformanceSQL = `SELECT v.id, COALESCE(NULLIF(v.company_name, ''), v.name),
			COUNT(o.id), COALESCE(SUM(i.amount_paid), 0) AS revenue
		FROM parties v
		JOIN orders o ON o.vendor_id = v.id AND o.status <> 'draft'
		LEFT JOIN invoices i ON i.order_id = o.id
		WHERE v.role = 'vendor'
		GROUP BY v.id, v.company_name, v.name
		ORDER BY revenue DESC, v.id
		LIMIT $1`
)

// ReportRepository runs the dashboard aggregates.
type ReportRepository struct {
	db *DB
}

func (r *ReportRepository) CollectedRevenue(ctx context.Context, vendorID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := r.db.q(ctx).QueryRow(ctx, collectedRevenueSQL, vendorID).Scan(&sum); err != nil {
		return decimal.Zero, errors.Wrap(err, "collected revenue")
	}
	return sum, nil
}

func (r *ReportRepository) PaymentRevenue(ctx context.Context, vendorID string, from, to time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := r.db.q(ctx).QueryRow(ctx, paymentRevenueSQL, vendorID, from, to).Scan(&sum); err != nil {
		return decimal.Zero, errors.Wrap(err, "payment revenue")
	}
	return sum, nil
}

func (r *ReportRepository) DailyRevenue(ctx context.Context, vendorID string, from, to time.Time) ([]report.RevenuePoint, error) {
	rows, err := r.db.q(ctx).Query(ctx, dailyRevenueSQL, vendorID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "daily revenue")
	}
	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.RevenuePoint, error) {
		var p report.RevenuePoint
		err := row.Scan(&p.Date, &p.Revenue)
		return p, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "daily revenue")
	}
	return points, nil
}

func (r *ReportRepository) OrderCounts(ctx context.Context, vendorID string, now, soon time.Time) (report.OrderCounts, error) {
	var c report.OrderCounts
	err := r.db.q(ctx).QueryRow(ctx, orderCountsSQL, vendorID, now, soon).Scan(
		&c.Total, &c.ActiveRentals, &c.PendingPickups, &c.PendingReturns, &c.OverdueReturns,
	)
	if err != nil {
		return report.OrderCounts{}, errors.Wrap(err, "order counts")
	}
	return c, nil
}

func (r *ReportRepository) PartyCounts(ctx context.Context, vendorID string) (report.PartyCounts, error) {
	var c report.PartyCounts
	err := r.db.q(ctx).QueryRow(ctx, partyCountsSQL, vendorID).Scan(&c.Products, &c.Customers, &c.Vendors)
	if err != nil {
		return report.PartyCounts{}, errors.Wrap(err, "party counts")
	}
	return c, nil
}

func (r *ReportRepository) TopProducts(ctx context.Context, vendorID string, limit int) ([]report.TopProduct, error) {
	rows, err := r.db.q(ctx).Query(ctx, topProductsSQL, vendorID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.TopProduct, error) {
		var p report.TopProduct
		err := row.Scan(&p.ProductID, &p.ProductName, &p.RentalCount, &p.Units, &p.Revenue)
		return p, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}
	return out, nil
}

func (r *ReportRepository) VendorPerformance(ctx context.Context, limit int) ([]report.VendorPerformance, error) {
	rows, err := r.db.q(ctx).Query(ctx, vendorPerformanceSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "vendor performance")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.VendorPerformance, error) {
		var v report.VendorPerformance
		err := row.Scan(&v.VendorID, &v.VendorName, &v.TotalOrders, &v.TotalRevenue)
		return v, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "vendor performance")
	}
	return out, nil
}
