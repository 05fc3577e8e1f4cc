package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"testing"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rental-ledger/internal/domain/invoice"
	"github.com/xenking/rental-ledger/internal/domain/order"
)

func readCSV(t *testing.T, r io.Reader) [][]string {
	t.Helper()
	rows, err := csv.NewReader(r).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteOrders(t *testing.T) {
	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(72 * time.Hour)
	orders := []order.Order{
		{
			ID: "o-1", Number: "S20250500001", CustomerID: "c-1", VendorID: "v-1",
			Status:      order.StatusConfirmed,
			RentalStart: &start, RentalEnd: &end,
			CreatedAt:   start.Add(-time.Hour),
			Subtotal:    decimal.NewFromInt(1500),
			Tax:         decimal.NewFromInt(270),
			Discount:    decimal.RequireFromString("10.5"),
			Total:       decimal.RequireFromString("1759.5"),
		},
		{ID: "o-2", Number: "S20250500002", Status: order.StatusDraft},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOrders(&buf, orders))

	rows := readCSV(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, orderHeader, rows[0])
	assert.Equal(t, []string{
		"o-1", "S20250500001", "c-1", "v-1", "confirmed",
		"2025-05-01T00:00:00Z", "2025-05-04T00:00:00Z", "2025-04-30T23:00:00Z",
		"1500.00", "270.00", "0.00", "10.50", "1759.50", "0.00",
	}, rows[1])
	assert.Equal(t, "", rows[2][5])
	assert.Equal(t, "", rows[2][7])
}

func TestWriteInvoices(t *testing.T) {
	invoices := []invoice.Invoice{{
		ID: "i-1", Number: "INV/2025/00001", OrderID: "o-1",
		Customer:    invoice.PartySnapshot{Name: "Asha"},
		Vendor:      invoice.PartySnapshot{Name: "Lens", CompanyName: "Lens Co"},
		Status:      invoice.StatusPartiallyPaid,
		InvoiceDate: time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2025, time.May, 8, 10, 0, 0, 0, time.UTC),
		Total:       decimal.NewFromInt(1000),
		AmountPaid:  decimal.NewFromInt(400),
		AmountDue:   decimal.NewFromInt(600),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteInvoices(&buf, invoices))

	rows := readCSV(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"i-1", "INV/2025/00001", "o-1", "Asha", "Lens Co", "partially_paid",
		"2025-05-01T10:00:00Z", "2025-05-08T10:00:00Z", "1000.00", "400.00", "600.00",
	}, rows[1])
}

func TestWriterBatchesAndEmptyExport(t *testing.T) {
	var buf bytes.Buffer
	w := NewOrderWriter(&buf)
	require.NoError(t, w.Orders([]order.Order{{ID: "a"}}))
	require.NoError(t, w.Orders([]order.Order{{ID: "b"}}))
	require.NoError(t, w.Flush())

	rows := readCSV(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[1][0])
	assert.Equal(t, "b", rows[2][0])

	buf.Reset()
	require.NoError(t, NewInvoiceWriter(&buf).Flush())
	assert.Equal(t, [][]string{invoiceHeader}, readCSV(t, &buf))
}

func TestGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := Gzip(&buf)
	require.NoError(t, WriteOrders(zw, []order.Order{{ID: "o-1"}}))
	require.NoError(t, zw.Close())

	zr, err := pgzip.NewReader(&buf)
	require.NoError(t, err)
	defer zr.Close()
	rows := readCSV(t, zr)
	require.Len(t, rows, 2)
	assert.Equal(t, "o-1", rows[1][0])
}
