package pricing

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/rental-ledger/internal/domain/period"
)

// LateFeePolicy selects how a late return is charged.
type LateFeePolicy string

const (
	// LateFeePerDay charges a flat amount per day late.
	LateFeePerDay LateFeePolicy = "per_day"
	// LateFeePercentage charges a percentage of the order total per day late.
	LateFeePercentage LateFeePolicy = "percentage"
	// LateFeeAdditive charges both components.
	LateFeeAdditive LateFeePolicy = "additive"
)

// ParseLateFeePolicy validates a configured policy name.
func ParseLateFeePolicy(s string) (LateFeePolicy, error) {
	switch p := LateFeePolicy(s); p {
	case LateFeePerDay, LateFeePercentage, LateFeeAdditive:
		return p, nil
	default:
		return "", errors.Errorf("unknown late fee policy %q", s)
	}
}

// LateFeeRule is the company late fee configuration.
type LateFeeRule struct {
	Policy     LateFeePolicy
	PerDay     decimal.Decimal
	Percentage decimal.Decimal
}

// DaysLate returns the whole days between the agreed end and the return.
// Partial days are not charged.
func DaysLate(expectedEnd, returnedAt time.Time) int {
	if !returnedAt.After(expectedEnd) {
		return 0
	}
	return int(returnedAt.Sub(expectedEnd) / period.Day)
}

// Compute returns the days late and the fee for a return at returnedAt of an
// order whose agreed end is expectedEnd and whose total is orderTotal.
func (r LateFeeRule) Compute(expectedEnd, returnedAt time.Time, orderTotal decimal.Decimal) (int, decimal.Decimal) {
	days := DaysLate(expectedEnd, returnedAt)
	if days == 0 {
		return 0, decimal.Zero
	}
	n := decimal.NewFromInt(int64(days))

	flat := r.PerDay.Mul(n)
	pct := orderTotal.Mul(r.Percentage).Div(hundred).Mul(n)

	var fee decimal.Decimal
	switch r.Policy {
	case LateFeePerDay:
		fee = flat
	case LateFeePercentage:
		fee = pct
	default:
		fee = flat.Add(pct)
	}
	return days, fee.Round(2)
}
