package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/rental-ledger/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, value, max_discount, min_order_value, description,
		valid_from, valid_until, usage_limit, usage_count, per_user_limit, active
		FROM coupons WHERE code = UPPER($1)`

	countRedemptionsSQL = `SELECT count(*) FROM coupon_redemptions WHERE code = $1 AND customer_id = $2`

	incrementCouponUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1 WHERE code = $1`

	insertRedemptionSQL = `INSERT INTO coupon_redemptions (code, customer_id, order_id) VALUES ($1, $2, $3)`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, value, max_discount, min_order_value,
		description, valid_from, valid_until, usage_limit, per_user_limit, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type, value = EXCLUDED.value,
			max_discount = EXCLUDED.max_discount, min_order_value = EXCLUDED.min_order_value,
			description = EXCLUDED.description, valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until, usage_limit = EXCLUDED.usage_limit,
			per_user_limit = EXCLUDED.per_user_limit, active = EXCLUDED.active`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	db *DB
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.db.q(ctx).Query(ctx, getCouponByCodeSQL, coupon.Normalize(code))
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &rule, nil
}

func (r *CouponRepository) CountRedemptions(ctx context.Context, code, customerID string) (int, error) {
	var n int
	if err := r.db.q(ctx).QueryRow(ctx, countRedemptionsSQL, code, customerID).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count redemptions of %q", code)
	}
	return n, nil
}

// Redeem increments the usage counter and records who redeemed the coupon
// on which order.
func (r *CouponRepository) Redeem(ctx context.Context, code, customerID, orderID string) error {
	return r.db.InTx(ctx, func(ctx context.Context) error {
		tag, err := r.db.q(ctx).Exec(ctx, incrementCouponUsageSQL, code)
		if err != nil {
			return errors.Wrapf(err, "increment usage of %q", code)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrInvalidCoupon
		}
		if _, err := r.db.q(ctx).Exec(ctx, insertRedemptionSQL, code, customerID, orderID); err != nil {
			return errors.Wrapf(err, "record redemption of %q", code)
		}
		return nil
	})
}

// Upsert inserts or updates coupons in one transaction, keeping usage
// counters of existing codes.
func (r *CouponRepository) Upsert(ctx context.Context, rules []coupon.Rule) (int, error) {
	err := r.db.InTx(ctx, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, rule := range rules {
			batch.Queue(upsertCouponSQL,
				coupon.Normalize(rule.Code), rule.DiscountType, rule.Value, rule.MaxDiscount, rule.MinOrderValue,
				rule.Description, rule.ValidFrom, rule.ValidUntil, rule.UsageLimit, rule.PerUserLimit, rule.Active,
			)
		}
		return r.db.q(ctx).SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, errors.Wrap(err, "upsert coupons")
	}
	return len(rules), nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var rule coupon.Rule
	err := row.Scan(
		&rule.Code, &rule.DiscountType, &rule.Value, &rule.MaxDiscount, &rule.MinOrderValue, &rule.Description,
		&rule.ValidFrom, &rule.ValidUntil, &rule.UsageLimit, &rule.UsageCount, &rule.PerUserLimit, &rule.Active,
	)
	return rule, err
}
