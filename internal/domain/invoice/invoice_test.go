package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rental-ledger/internal/domain/party"
	"github.com/xenking/rental-ledger/internal/domain/period"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type mockParties map[string]party.Party

func (m mockParties) GetByID(_ context.Context, id string) (*party.Party, error) {
	p, ok := m[id]
	if !ok {
		return nil, party.ErrNotFound
	}
	return &p, nil
}

type mockInvoiceRepo struct {
	byID    map[string]*Invoice
	seq     map[int]int
	created int
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{byID: map[string]*Invoice{}, seq: map[int]int{}}
}

func (m *mockInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	cp := *inv
	m.byID[inv.ID] = &cp
	m.created++
	return nil
}

func (m *mockInvoiceRepo) Get(_ context.Context, id string) (*Invoice, error) {
	inv, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvoiceRepo) GetForUpdate(ctx context.Context, id string) (*Invoice, error) {
	return m.Get(ctx, id)
}

func (m *mockInvoiceRepo) GetByOrder(_ context.Context, orderID string) (*Invoice, error) {
	for _, inv := range m.byID {
		if inv.OrderID == orderID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockInvoiceRepo) Update(_ context.Context, inv *Invoice) error {
	cp := *inv
	m.byID[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) List(_ context.Context, _ Filter) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range m.byID {
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (m *mockInvoiceRepo) NextNumber(_ context.Context, year int) (int, error) {
	m.seq[year]++
	return m.seq[year], nil
}

func testSource() Source {
	rng := period.Range{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
	}
	return Source{
		OrderID:         "order-1",
		OrderNumber:     "S20250100001",
		CustomerID:      "cust-1",
		VendorID:        "vend-1",
		BillingAddress:  "1 Billing St",
		DeliveryAddress: "2 Delivery Rd",
		RentalPeriod:    rng,
		Lines: []SourceLine{{
			ProductID: "cam-1", ProductName: "Camera", ProductSKU: "CAM", Period: rng,
			Quantity: 2, UnitPrice: dec("3000"), Subtotal: dec("6000"), Tax: dec("1080"),
		}},
		TaxRate:         dec("18"),
		SecurityDeposit: dec("2000"),
		DeliveryCharges: dec("150"),
		Discount:        dec("600"),
		CouponCode:      "SAVE10",
	}
}

func TestBuild(t *testing.T) {
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	inv := Build(testSource(), at)

	assert.Equal(t, StatusDraft, inv.Status)
	assert.True(t, dec("6000").Equal(inv.Subtotal))
	assert.True(t, dec("1080").Equal(inv.Tax))
	assert.True(t, dec("540").Equal(inv.CGST))
	assert.True(t, dec("540").Equal(inv.SGST))
	// 6000 + 1080 + 2000 + 150 - 600
	assert.True(t, dec("8630").Equal(inv.Total), "total %s", inv.Total)
	assert.True(t, inv.Total.Equal(inv.AmountDue))
	assert.True(t, inv.AmountPaid.IsZero())

	require.Len(t, inv.Lines, 3)
	assert.Equal(t, LineRental, inv.Lines[0].Kind)
	assert.True(t, dec("7080").Equal(inv.Lines[0].Total))
	assert.Equal(t, LineDeposit, inv.Lines[1].Kind)
	assert.Equal(t, LineDelivery, inv.Lines[2].Kind)
}

func TestBuild_OddTaxSplit(t *testing.T) {
	src := testSource()
	src.Lines[0].Tax = dec("0.05")
	inv := Build(src, time.Now())

	assert.True(t, inv.CGST.Add(inv.SGST).Equal(inv.Tax))
}

func TestGenerator_Generate(t *testing.T) {
	repo := newMockInvoiceRepo()
	parties := mockParties{
		"cust-1": {ID: "cust-1", Name: "Asha", Address: "Pune"},
		"vend-1": {ID: "vend-1", Name: "Lens Co", CompanyName: "Lens Co Pvt Ltd", GSTIN: "27ABCDE1234F1Z5"},
	}
	g := NewGenerator(passTx{}, repo, parties, Config{Currency: "INR", DueDays: 7})
	now := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	inv, err := g.Generate(context.Background(), testSource())
	require.NoError(t, err)
	assert.Equal(t, "INV/2025/00001", inv.Number)
	assert.Equal(t, "Lens Co Pvt Ltd", inv.Vendor.CompanyName)
	assert.Equal(t, "27ABCDE1234F1Z5", inv.Vendor.GSTIN)
	assert.Equal(t, "Asha", inv.Customer.Name)
	assert.Equal(t, "INR", inv.Currency)
	assert.Equal(t, now.AddDate(0, 0, 7), inv.DueDate)

	again, err := g.Generate(context.Background(), testSource())
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID)
	assert.Equal(t, 1, repo.created)

	other := testSource()
	other.OrderID = "order-2"
	second, err := g.Generate(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, "INV/2025/00002", second.Number)
}

func TestGenerator_GenerateUnknownParty(t *testing.T) {
	g := NewGenerator(passTx{}, newMockInvoiceRepo(), mockParties{}, Config{})

	_, err := g.Generate(context.Background(), testSource())
	require.ErrorIs(t, err, party.ErrNotFound)
}

func TestInvoice_ApplyPayment(t *testing.T) {
	newInv := func() *Invoice {
		return &Invoice{ID: "inv-1", Status: StatusDraft, Total: dec("1000"), AmountDue: dec("1000")}
	}

	t.Run("partial then full", func(t *testing.T) {
		inv := newInv()
		require.NoError(t, inv.ApplyPayment(dec("400")))
		assert.Equal(t, StatusPartiallyPaid, inv.Status)
		assert.True(t, dec("600").Equal(inv.AmountDue))

		require.NoError(t, inv.ApplyPayment(dec("600")))
		assert.Equal(t, StatusPaid, inv.Status)
		assert.True(t, inv.AmountDue.IsZero())
	})

	t.Run("overpayment", func(t *testing.T) {
		inv := newInv()
		require.NoError(t, inv.ApplyPayment(dec("900")))

		err := inv.ApplyPayment(dec("100.01"))
		var over *OverpaymentError
		require.ErrorAs(t, err, &over)
		assert.True(t, dec("100").Equal(over.AmountDue))
		assert.True(t, dec("900").Equal(inv.AmountPaid))
	})

	t.Run("non positive", func(t *testing.T) {
		require.ErrorIs(t, newInv().ApplyPayment(decimal.Zero), ErrInvalidAmount)
	})

	t.Run("cancelled", func(t *testing.T) {
		inv := newInv()
		require.NoError(t, inv.Cancel())
		var stateErr *StateError
		require.ErrorAs(t, inv.ApplyPayment(dec("1")), &stateErr)
	})
}

func TestInvoice_Transitions(t *testing.T) {
	inv := &Invoice{ID: "inv-1", Status: StatusDraft, Total: dec("10")}
	require.NoError(t, inv.Post())
	assert.Equal(t, StatusPosted, inv.Status)

	var stateErr *StateError
	require.ErrorAs(t, inv.Post(), &stateErr)

	require.NoError(t, inv.ApplyPayment(dec("4")))
	require.ErrorAs(t, inv.Cancel(), &stateErr)
	assert.Equal(t, StatusPartiallyPaid, inv.Status)

	require.NoError(t, inv.ApplyPayment(dec("6")))
	require.ErrorAs(t, inv.Cancel(), &stateErr)
	assert.True(t, inv.Status.Terminal())
}

func TestGenerator_CancelForOrder(t *testing.T) {
	repo := newMockInvoiceRepo()
	parties := mockParties{"cust-1": {ID: "cust-1"}, "vend-1": {ID: "vend-1"}}
	g := NewGenerator(passTx{}, repo, parties, Config{})
	ctx := context.Background()

	require.NoError(t, g.CancelForOrder(ctx, "missing"))

	inv, err := g.Generate(ctx, testSource())
	require.NoError(t, err)
	require.NoError(t, g.CancelForOrder(ctx, "order-1"))
	require.NoError(t, g.CancelForOrder(ctx, "order-1"))

	got, err := g.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}
