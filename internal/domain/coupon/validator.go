package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator evaluates and redeems coupon codes.
type Validator interface {
	// Evaluate computes the discount without recording anything.
	Evaluate(ctx context.Context, code, customerID string, subtotal decimal.Decimal) (*Discount, error)
	// Redeem re-evaluates the coupon and records a use by the customer for
	// the order. It must run in the caller's transaction.
	Redeem(ctx context.Context, code, customerID, orderID string, subtotal decimal.Decimal) (*Discount, error)
}

// RepoValidator implements Validator by looking up coupon rules from a
// Repository and applying them via the Apply function.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Evaluate looks up the coupon rule for the given code, checks the active
// flag, validity window, usage limits and minimum order value, and applies
// it to subtotal.
func (v *RepoValidator) Evaluate(ctx context.Context, code, customerID string, subtotal decimal.Decimal) (*Discount, error) {
	code = Normalize(code)
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if !rule.Active {
		return nil, ErrInvalidCoupon
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCouponExpired
	}

	if rule.UsageLimit > 0 && rule.UsageCount >= rule.UsageLimit {
		return nil, ErrCouponUsageLimitReached
	}

	if rule.PerUserLimit > 0 && customerID != "" {
		used, err := v.repo.CountRedemptions(ctx, code, customerID)
		if err != nil {
			return nil, errors.Wrap(err, "count coupon redemptions")
		}
		if used >= rule.PerUserLimit {
			return nil, ErrCouponPerUserLimitReached
		}
	}

	if rule.MinOrderValue.IsPositive() && subtotal.LessThan(rule.MinOrderValue) {
		return nil, &MinOrderValueError{Code: code, Minimum: rule.MinOrderValue, Subtotal: subtotal}
	}

	d, err := Apply(rule, subtotal)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Redeem evaluates the coupon and increments its usage on success.
func (v *RepoValidator) Redeem(ctx context.Context, code, customerID, orderID string, subtotal decimal.Decimal) (*Discount, error) {
	d, err := v.Evaluate(ctx, code, customerID, subtotal)
	if err != nil {
		return nil, err
	}
	if err := v.repo.Redeem(ctx, Normalize(code), customerID, orderID); err != nil {
		return nil, errors.Wrap(err, "redeem coupon")
	}
	return d, nil
}
