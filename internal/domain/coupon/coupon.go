package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the subtotal, optionally capped.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is unknown or inactive.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrCouponPerUserLimitReached is returned when the customer already used
	// the coupon as many times as allowed.
	ErrCouponPerUserLimitReached = errors.New("coupon already used by customer")
)

// MinOrderValueError is returned when the subtotal is below the coupon minimum.
type MinOrderValueError struct {
	Code     string
	Minimum  decimal.Decimal
	Subtotal decimal.Decimal
}

func (e *MinOrderValueError) Error() string {
	return fmt.Sprintf("coupon %s requires a minimum order value of %s, got %s",
		e.Code, e.Minimum.StringFixed(2), e.Subtotal.StringFixed(2))
}

// IsRejection reports whether err means the coupon cannot be applied, as
// opposed to a lookup failure.
func IsRejection(err error) bool {
	var minErr *MinOrderValueError
	return errors.Is(err, ErrInvalidCoupon) ||
		errors.Is(err, ErrCouponExpired) ||
		errors.Is(err, ErrCouponUsageLimitReached) ||
		errors.Is(err, ErrCouponPerUserLimitReached) ||
		errors.As(err, &minErr)
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	Value         decimal.Decimal `json:"value"`
	MaxDiscount   decimal.Decimal `json:"max_discount"`
	MinOrderValue decimal.Decimal `json:"min_order_value"`
	Description   string          `json:"description"`
	ValidFrom     *time.Time      `json:"valid_from,omitempty"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	// UsageLimit of 0 means unlimited.
	UsageLimit   int  `json:"usage_limit"`
	UsageCount   int  `json:"usage_count"`
	PerUserLimit int  `json:"per_user_limit"`
	Active       bool `json:"active"`
}

// Discount holds the computed discount amount and a human-readable description.
type Discount struct {
	Code        string          `json:"code"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Normalize returns the canonical form of a coupon code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides lookup and redemption bookkeeping of coupon rules.
// Codes passed in are already normalized.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	CountRedemptions(ctx context.Context, code, customerID string) (int, error)
	// Redeem increments the usage count and records the redemption.
	Redeem(ctx context.Context, code, customerID, orderID string) error
	Upsert(ctx context.Context, rules []Rule) (int, error)
}
