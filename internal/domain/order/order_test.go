package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rental-ledger/internal/domain/period"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusDraft, StatusQuotation, StatusConfirmed, StatusPickedUp, StatusReturned, StatusCancelled}
	legal := map[[2]Status]bool{
		{StatusDraft, StatusQuotation}:     true,
		{StatusDraft, StatusCancelled}:     true,
		{StatusQuotation, StatusConfirmed}: true,
		{StatusQuotation, StatusCancelled}: true,
		{StatusConfirmed, StatusPickedUp}:  true,
		{StatusConfirmed, StatusCancelled}: true,
		{StatusPickedUp, StatusReturned}:   true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	assert.True(t, StatusReturned.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPickedUp.Terminal())
	assert.True(t, StatusQuotation.Editable())
	assert.False(t, StatusConfirmed.Editable())
}

func TestTransitionLeavesOrderOnError(t *testing.T) {
	o := &Order{ID: "o-1", Status: StatusPickedUp}
	err := o.transition(StatusCancelled)

	var transErr *IllegalTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, StatusPickedUp, transErr.From)
	assert.Equal(t, StatusCancelled, transErr.To)
	assert.Equal(t, StatusPickedUp, o.Status)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("picked_up")
	require.NoError(t, err)
	assert.Equal(t, StatusPickedUp, st)

	_, err = ParseStatus("shipped")
	require.Error(t, err)
}

func TestRecompute(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	day := func(n int) time.Time { return time.Date(2025, time.March, n, 0, 0, 0, 0, time.UTC) }

	o := &Order{
		DeliveryMethod: DeliveryStandard,
		Discount:       d("50"),
		Items: []Item{
			{Subtotal: d("1000"), SecurityDeposit: d("200"), RentalPeriod: period.Range{Start: day(3), End: day(6)}},
			{Subtotal: d("333.33"), RentalPeriod: period.Range{Start: day(1), End: day(4)}},
		},
	}
	p := Pricing{TaxRate: d("18"), DeliveryCharge: d("99")}

	o.Recompute(p)
	assert.True(t, d("1333.33").Equal(o.Subtotal))
	// 180 + 60.00 (333.33 * 18% rounds to 60.00)
	assert.True(t, d("240").Equal(o.Tax), "tax %s", o.Tax)
	assert.True(t, d("99").Equal(o.DeliveryCharges))
	assert.True(t, d("1822.33").Equal(o.Total), "total %s", o.Total)
	require.NotNil(t, o.RentalStart)
	assert.Equal(t, day(1), *o.RentalStart)
	assert.Equal(t, day(6), *o.RentalEnd)

	before := *o
	o.Recompute(p)
	assert.True(t, before.Total.Equal(o.Total))
	assert.True(t, before.Tax.Equal(o.Tax))

	o.Discount = d("5000")
	o.Recompute(p)
	assert.True(t, o.Subtotal.Equal(o.Discount), "discount is capped at subtotal")

	o.Items = nil
	o.Recompute(p)
	assert.True(t, o.Total.IsZero())
	assert.True(t, o.DeliveryCharges.IsZero())
	assert.Nil(t, o.RentalEnd)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "S20250300042", FormatNumber(time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC), 42))
}

func TestScopeAllows(t *testing.T) {
	o := &Order{CustomerID: "c", VendorID: "v"}
	assert.True(t, Scope{}.Allows(o))
	assert.True(t, Scope{CustomerID: "c"}.Allows(o))
	assert.True(t, Scope{VendorID: "v"}.Allows(o))
	assert.False(t, Scope{CustomerID: "x"}.Allows(o))
	assert.False(t, Scope{VendorID: "x"}.Allows(o))
}
