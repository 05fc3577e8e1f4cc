// Package pricing computes rental line prices from a product rate card, tax
// on line subtotals and late return fees.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/rental-ledger/internal/domain/period"
	"github.com/xenking/rental-ledger/internal/domain/product"
)

// Billing thresholds in days.
const (
	WeekDays           = 7
	MonthThresholdDays = 28
	BillingMonthDays   = 30
)

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrNoDailyRate     = errors.New("product has no daily rate")
)

var hundred = decimal.NewFromInt(100)

// Basis names the tier a line was billed on.
type Basis string

const (
	BasisDaily   Basis = "daily"
	BasisWeekly  Basis = "weekly"
	BasisMonthly Basis = "monthly"
)

// Quote is the priced result for one line.
type Quote struct {
	Basis  Basis `json:"basis"`
	Months int   `json:"months"`
	Weeks  int   `json:"weeks"`
	// Days is the remainder billed at the daily rate.
	Days int `json:"days"`
	// UnitPrice is the price of one unit for the whole range.
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Price bills qty units over rng. Monthly billing applies when the span is at
// least 28 days and covers a whole billing month, a monthly rate is set and it
// is cheaper per day than the daily rate; weekly billing applies from 7 days
// when a weekly rate is set; otherwise every started day is billed at the
// daily rate. Remainders are always billed daily.
func Price(card product.RateCard, rng period.Range, qty int) (Quote, error) {
	if err := rng.Validate(); err != nil {
		return Quote{}, err
	}
	if qty <= 0 {
		return Quote{}, ErrInvalidQuantity
	}
	if !card.Daily.IsPositive() {
		return Quote{}, ErrNoDailyRate
	}

	days := rng.Days()
	months := days / BillingMonthDays
	q := Quote{Basis: BasisDaily, Days: days}

	switch {
	case days >= MonthThresholdDays && months > 0 && card.Monthly.IsPositive() &&
		card.Monthly.Div(decimal.NewFromInt(BillingMonthDays)).LessThan(card.Daily):
		q.Basis = BasisMonthly
		q.Months = months
		q.Days = days - months*BillingMonthDays
	case days >= WeekDays && card.Weekly.IsPositive():
		q.Basis = BasisWeekly
		q.Weeks = days / WeekDays
		q.Days = days % WeekDays
	}

	unit := card.Monthly.Mul(decimal.NewFromInt(int64(q.Months))).
		Add(card.Weekly.Mul(decimal.NewFromInt(int64(q.Weeks)))).
		Add(card.Daily.Mul(decimal.NewFromInt(int64(q.Days))))

	q.UnitPrice = unit.Round(2)
	q.Subtotal = q.UnitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	return q, nil
}

// Tax returns amount * ratePercent / 100 rounded to cents.
func Tax(amount, ratePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(ratePercent).Div(hundred).Round(2)
}
