package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/rental-ledger/internal/domain/invoice"
)

const (
	invoiceColumns = `id, number, order_id, order_number, customer, vendor,
		billing_address, delivery_address, period_start, period_end, lines,
		tax_rate, subtotal, tax, cgst, sgst, security_deposit, delivery_charges, discount,
		coupon_code, total, amount_paid, amount_due, currency, status,
		invoice_date, due_date, created_at, updated_at`

	createInvoiceSQL = `INSERT INTO invoices (` + invoiceColumns + `, customer_id, vendor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)`

	getInvoiceSQL = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	lockInvoiceSQL = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`

	getInvoiceByOrderSQL = `SELECT ` + invoiceColumns + ` FROM invoices WHERE order_id = $1`

	updateInvoiceSQL = `UPDATE invoices SET status = $2, amount_paid = $3, amount_due = $4, updated_at = $5
		WHERE id = $1`
)

var _ invoice.Repository = (*InvoiceRepository)(nil)

// InvoiceRepository implements invoice.Repository backed by PostgreSQL.
// Party snapshots and lines are stored as JSONB; only status and paid
// amounts change after creation.
type InvoiceRepository struct {
	db *DB
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	_, err := r.db.q(ctx).Exec(ctx, createInvoiceSQL,
		inv.ID, inv.Number, inv.OrderID, inv.OrderNumber, inv.Customer, inv.Vendor,
		inv.BillingAddress, inv.DeliveryAddress, inv.RentalPeriod.Start, inv.RentalPeriod.End, inv.Lines,
		inv.TaxRate, inv.Subtotal, inv.Tax, inv.CGST, inv.SGST, inv.SecurityDeposit, inv.DeliveryCharges, inv.Discount,
		inv.CouponCode, inv.Total, inv.AmountPaid, inv.AmountDue, inv.Currency, inv.Status,
		inv.InvoiceDate, inv.DueDate, inv.CreatedAt, inv.UpdatedAt,
		inv.Customer.ID, inv.Vendor.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "create invoice %q", inv.Number)
	}
	return nil
}

func (r *InvoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.getOne(ctx, getInvoiceSQL, id)
}

func (r *InvoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.getOne(ctx, lockInvoiceSQL, id)
}

func (r *InvoiceRepository) GetByOrder(ctx context.Context, orderID string) (*invoice.Invoice, error) {
	return r.getOne(ctx, getInvoiceByOrderSQL, orderID)
}

func (r *InvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateInvoiceSQL, inv.ID, inv.Status, inv.AmountPaid, inv.AmountDue, inv.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "update invoice %q", inv.ID)
	}
	if tag.RowsAffected() == 0 {
		return invoice.ErrNotFound
	}
	return nil
}

func (r *InvoiceRepository) List(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.VendorID != "" {
		add("vendor_id = $%d", f.VendorID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	limit, offset := limitOffset(f.Page, f.PerPage)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s, count(*) OVER () FROM invoices %s
		ORDER BY number LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, len(args)-1, len(args))

	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list invoices")
	}
	var total int
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (invoice.Invoice, error) {
		inv, dest := invoiceDest()
		err := row.Scan(append(dest, &total)...)
		return *inv, err
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "list invoices")
	}
	return out, total, nil
}

func (r *InvoiceRepository) NextNumber(ctx context.Context, year int) (int, error) {
	return r.db.next(ctx, fmt.Sprintf("invoice:%d", year))
}

func (r *InvoiceRepository) getOne(ctx context.Context, query string, args ...any) (*invoice.Invoice, error) {
	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "get invoice")
	}
	inv, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (invoice.Invoice, error) {
		inv, dest := invoiceDest()
		err := row.Scan(dest...)
		return *inv, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrNotFound
		}
		return nil, errors.Wrap(err, "get invoice")
	}
	return &inv, nil
}

func invoiceDest() (*invoice.Invoice, []any) {
	inv := &invoice.Invoice{}
	return inv, []any{
		&inv.ID, &inv.Number, &inv.OrderID, &inv.OrderNumber, &inv.Customer, &inv.Vendor,
		&inv.BillingAddress, &inv.DeliveryAddress, &inv.RentalPeriod.Start, &inv.RentalPeriod.End, &inv.Lines,
		&inv.TaxRate, &inv.Subtotal, &inv.Tax, &inv.CGST, &inv.SGST, &inv.SecurityDeposit, &inv.DeliveryCharges, &inv.Discount,
		&inv.CouponCode, &inv.Total, &inv.AmountPaid, &inv.AmountDue, &inv.Currency, &inv.Status,
		&inv.InvoiceDate, &inv.DueDate, &inv.CreatedAt, &inv.UpdatedAt,
	}
}
