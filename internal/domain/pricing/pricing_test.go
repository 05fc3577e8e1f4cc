package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rental-ledger/internal/domain/period"
	"github.com/xenking/rental-ledger/internal/domain/product"
)

func jan(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func span(days int) period.Range {
	return period.Range{Start: jan(1), End: jan(1).Add(time.Duration(days) * period.Day)}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPrice(t *testing.T) {
	card := product.RateCard{Daily: dec("500"), Weekly: dec("3000"), Monthly: dec("10000")}

	tests := []struct {
		name      string
		card      product.RateCard
		rng       period.Range
		qty       int
		basis     Basis
		unit      string
		subtotal  string
		weeks     int
		months    int
		remainder int
	}{
		{
			name: "single day", card: card, rng: span(1), qty: 1,
			basis: BasisDaily, unit: "500", subtotal: "500", remainder: 1,
		},
		{
			name: "six days stays daily", card: card, rng: span(6), qty: 2,
			basis: BasisDaily, unit: "3000", subtotal: "6000", remainder: 6,
		},
		{
			name: "seven days bills one week", card: card, rng: period.Range{Start: jan(1), End: jan(8)}, qty: 1,
			basis: BasisWeekly, unit: "3000", subtotal: "3000", weeks: 1,
		},
		{
			name: "ten days bills week plus three days", card: card, rng: span(10), qty: 1,
			basis: BasisWeekly, unit: "4500", subtotal: "4500", weeks: 1, remainder: 3,
		},
		{
			name: "weekly without weekly rate bills daily", card: product.RateCard{Daily: dec("500")}, rng: span(7), qty: 1,
			basis: BasisDaily, unit: "3500", subtotal: "3500", remainder: 7,
		},
		{
			name: "twenty eight days short of a month bills weekly", card: card, rng: span(28), qty: 1,
			basis: BasisWeekly, unit: "12000", subtotal: "12000", weeks: 4,
		},
		{
			name: "twenty seven days bills weekly", card: product.RateCard{Daily: dec("100"), Weekly: dec("600"), Monthly: dec("2950")}, rng: span(27), qty: 1,
			basis: BasisWeekly, unit: "2400", subtotal: "2400", weeks: 3, remainder: 6,
		},
		{
			name: "twenty nine days never bills a whole month", card: product.RateCard{Daily: dec("100"), Weekly: dec("600"), Monthly: dec("2950")}, rng: span(29), qty: 1,
			basis: BasisWeekly, unit: "2500", subtotal: "2500", weeks: 4, remainder: 1,
		},
		{
			name: "thirty days bills one month", card: card, rng: span(30), qty: 1,
			basis: BasisMonthly, unit: "10000", subtotal: "10000", months: 1,
		},
		{
			name: "thirty five days bills month plus five days", card: card, rng: span(35), qty: 3,
			basis: BasisMonthly, unit: "12500", subtotal: "37500", months: 1, remainder: 5,
		},
		{
			name: "expensive monthly falls back to weekly", card: product.RateCard{Daily: dec("100"), Weekly: dec("600"), Monthly: dec("9000")}, rng: span(30), qty: 1,
			basis: BasisWeekly, unit: "2600", subtotal: "2600", weeks: 4, remainder: 2,
		},
		{
			name: "partial day rounds up", card: card, rng: period.Range{Start: jan(1), End: jan(2).Add(time.Hour)}, qty: 1,
			basis: BasisDaily, unit: "1000", subtotal: "1000", remainder: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Price(tt.card, tt.rng, tt.qty)
			require.NoError(t, err)
			assert.Equal(t, tt.basis, q.Basis)
			assert.True(t, dec(tt.unit).Equal(q.UnitPrice), "unit %s, got %s", tt.unit, q.UnitPrice)
			assert.True(t, dec(tt.subtotal).Equal(q.Subtotal), "subtotal %s, got %s", tt.subtotal, q.Subtotal)
			assert.Equal(t, tt.weeks, q.Weeks)
			assert.Equal(t, tt.months, q.Months)
			assert.Equal(t, tt.remainder, q.Days)
		})
	}
}

func TestPrice_Rejects(t *testing.T) {
	card := product.RateCard{Daily: dec("500")}

	_, err := Price(card, period.Range{Start: jan(5), End: jan(5)}, 1)
	require.ErrorIs(t, err, period.ErrInvalidRange)

	_, err = Price(card, period.Range{Start: jan(5), End: jan(1)}, 1)
	require.ErrorIs(t, err, period.ErrInvalidRange)

	_, err = Price(card, span(2), 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = Price(product.RateCard{}, span(2), 1)
	require.ErrorIs(t, err, ErrNoDailyRate)
}

func TestTax(t *testing.T) {
	assert.True(t, dec("540").Equal(Tax(dec("3000"), dec("18"))))
	assert.True(t, dec("0.18").Equal(Tax(dec("1"), dec("18"))))
	assert.True(t, decimal.Zero.Equal(Tax(dec("100"), decimal.Zero)))
}

func TestLateFee(t *testing.T) {
	end := jan(10)
	total := dec("1000")

	tests := []struct {
		name     string
		policy   LateFeePolicy
		returned time.Time
		days     int
		fee      string
	}{
		{"on time", LateFeeAdditive, end, 0, "0"},
		{"early", LateFeeAdditive, jan(9), 0, "0"},
		{"partial day is free", LateFeePerDay, end.Add(20 * time.Hour), 0, "0"},
		{"per day", LateFeePerDay, jan(13), 3, "300"},
		{"percentage", LateFeePercentage, jan(13), 3, "150"},
		{"additive", LateFeeAdditive, jan(12).Add(5 * time.Hour), 2, "300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := LateFeeRule{Policy: tt.policy, PerDay: dec("100"), Percentage: dec("5")}
			days, fee := rule.Compute(end, tt.returned, total)
			assert.Equal(t, tt.days, days)
			assert.True(t, dec(tt.fee).Equal(fee), "fee %s, got %s", tt.fee, fee)
		})
	}
}

func TestParseLateFeePolicy(t *testing.T) {
	p, err := ParseLateFeePolicy("percentage")
	require.NoError(t, err)
	assert.Equal(t, LateFeePercentage, p)

	_, err = ParseLateFeePolicy("weekly")
	require.Error(t, err)
}
