package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Apply calculates the discount of rule for the given subtotal. The result
// is never negative and never exceeds the subtotal.
func Apply(rule *Rule, subtotal decimal.Decimal) (Discount, error) {
	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, rule.MaxDiscount)
		}
	case DiscountFixed:
		amount = rule.Value
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	amount = decimal.Min(amount, subtotal)
	return Discount{
		Code:        rule.Code,
		Amount:      floorAtZero(amount).Round(2),
		Description: rule.Description,
	}, nil
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
