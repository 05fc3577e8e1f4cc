// Package export renders orders and invoices as CSV for vendor reporting.
package export

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/rental-ledger/internal/domain/invoice"
	"github.com/xenking/rental-ledger/internal/domain/order"
)

var (
	orderHeader = []string{
		"id", "order_number", "customer_id", "vendor_id", "status",
		"rental_start", "rental_end", "created_at",
		"subtotal", "tax", "security_deposit", "discount", "total", "late_fee",
	}
	invoiceHeader = []string{
		"id", "invoice_number", "order_id", "customer", "vendor", "status",
		"invoice_date", "due_date", "total", "amount_paid", "amount_due",
	}
)

// Writer streams CSV records. The header row is written before the first
// batch, so an export with no rows still has a header.
type Writer struct {
	csv    *csv.Writer
	header []string
	wrote  bool
}

// NewOrderWriter returns a Writer for order rows.
func NewOrderWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w), header: orderHeader}
}

// NewInvoiceWriter returns a Writer for invoice rows.
func NewInvoiceWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w), header: invoiceHeader}
}

// Orders appends one row per order.
func (w *Writer) Orders(orders []order.Order) error {
	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []string{
			o.ID,
			o.Number,
			o.CustomerID,
			o.VendorID,
			string(o.Status),
			formatTimePtr(o.RentalStart),
			formatTimePtr(o.RentalEnd),
			formatTime(o.CreatedAt),
			money(o.Subtotal),
			money(o.Tax),
			money(o.SecurityDeposit),
			money(o.Discount),
			money(o.Total),
			money(o.LateFee),
		})
	}
	return w.write(rows)
}

// Invoices appends one row per invoice.
func (w *Writer) Invoices(invoices []invoice.Invoice) error {
	rows := make([][]string, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, []string{
			inv.ID,
			inv.Number,
			inv.OrderID,
			partyName(inv.Customer),
			partyName(inv.Vendor),
			string(inv.Status),
			formatTime(inv.InvoiceDate),
			formatTime(inv.DueDate),
			money(inv.Total),
			money(inv.AmountPaid),
			money(inv.AmountDue),
		})
	}
	return w.write(rows)
}

// Flush writes any buffered rows, including the header of an empty export.
func (w *Writer) Flush() error {
	if err := w.write(nil); err != nil {
		return err
	}
	w.csv.Flush()
	return errors.Wrap(w.csv.Error(), "flush csv")
}

func (w *Writer) write(rows [][]string) error {
	if !w.wrote {
		if err := w.csv.Write(w.header); err != nil {
			return errors.Wrap(err, "write header")
		}
		w.wrote = true
	}
	if err := w.csv.WriteAll(rows); err != nil {
		return errors.Wrap(err, "write rows")
	}
	return nil
}

// WriteOrders writes a complete order export to w.
func WriteOrders(w io.Writer, orders []order.Order) error {
	cw := NewOrderWriter(w)
	if err := cw.Orders(orders); err != nil {
		return err
	}
	return cw.Flush()
}

// WriteInvoices writes a complete invoice export to w.
func WriteInvoices(w io.Writer, invoices []invoice.Invoice) error {
	cw := NewInvoiceWriter(w)
	if err := cw.Invoices(invoices); err != nil {
		return err
	}
	return cw.Flush()
}

// Gzip wraps w in a parallel gzip writer. Close must be called to flush the
// trailer.
func Gzip(w io.Writer) io.WriteCloser {
	return pgzip.NewWriter(w)
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func partyName(p invoice.PartySnapshot) string {
	if p.CompanyName != "" {
		return p.CompanyName
	}
	return p.Name
}
