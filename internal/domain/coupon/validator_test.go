package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rule        *Rule
	err         error
	redemptions int
	countErr    error
	redeemErr   error
	redeemed    []string
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func (m *mockCouponRepo) CountRedemptions(_ context.Context, _, _ string) (int, error) {
	return m.redemptions, m.countErr
}

func (m *mockCouponRepo) Redeem(_ context.Context, code, customerID, orderID string) error {
	m.redeemed = append(m.redeemed, code+"/"+customerID+"/"+orderID)
	return m.redeemErr
}

func (m *mockCouponRepo) Upsert(_ context.Context, rules []Rule) (int, error) {
	return len(rules), nil
}

func TestRepoValidator_Evaluate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name       string
		repo       *mockCouponRepo
		subtotal   decimal.Decimal
		wantAmount decimal.Decimal
		wantErr    error
		wantMinErr bool
	}{
		{
			name: "percentage discount",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "SAVE10", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10), Active: true,
			}},
			subtotal:   decimal.NewFromInt(1000),
			wantAmount: decimal.NewFromInt(100),
		},
		{
			name: "percentage discount capped by max discount",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "BIG50", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(50),
				MaxDiscount: decimal.NewFromInt(200), Active: true,
			}},
			subtotal:   decimal.NewFromInt(1000),
			wantAmount: decimal.NewFromInt(200),
		},
		{
			name: "fixed discount capped at subtotal",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "FLAT500", DiscountType: DiscountFixed, Value: decimal.NewFromInt(500), Active: true,
			}},
			subtotal:   decimal.NewFromInt(300),
			wantAmount: decimal.NewFromInt(300),
		},
		{
			name:     "unknown code",
			repo:     &mockCouponRepo{err: ErrInvalidCoupon},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrInvalidCoupon,
		},
		{
			name: "inactive coupon",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "OFF", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5),
			}},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrInvalidCoupon,
		},
		{
			name: "not yet valid",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "SOON", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), ValidFrom: &futureTime, Active: true,
			}},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrCouponExpired,
		},
		{
			name: "expired",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "OLD", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), ValidUntil: &pastTime, Active: true,
			}},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrCouponExpired,
		},
		{
			name: "inside validity window",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "NOW", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5),
				ValidFrom: &pastTime, ValidUntil: &futureTime, Active: true,
			}},
			subtotal:   decimal.NewFromInt(100),
			wantAmount: decimal.NewFromInt(5),
		},
		{
			name: "usage limit reached",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "MAXED", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5),
				UsageLimit: 10, UsageCount: 10, Active: true,
			}},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrCouponUsageLimitReached,
		},
		{
			name: "per user limit reached",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code: "ONCE", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5),
					PerUserLimit: 1, Active: true,
				},
				redemptions: 1,
			},
			subtotal: decimal.NewFromInt(100),
			wantErr:  ErrCouponPerUserLimitReached,
		},
		{
			name: "below minimum order value",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "MIN1K", DiscountType: DiscountFixed, Value: decimal.NewFromInt(100),
				MinOrderValue: decimal.NewFromInt(1000), Active: true,
			}},
			subtotal:   decimal.NewFromInt(999),
			wantMinErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Evaluate(context.Background(), " save10 ", "cust-1", tt.subtotal)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsRejection(err))
				assert.Nil(t, got)
				return
			}
			if tt.wantMinErr {
				var minErr *MinOrderValueError
				require.ErrorAs(t, err, &minErr)
				assert.True(t, IsRejection(err))
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.wantAmount.Equal(got.Amount),
				"expected amount %s, got %s", tt.wantAmount, got.Amount)
			assert.Empty(t, tt.repo.redeemed)
		})
	}
}

func TestRepoValidator_LookupError(t *testing.T) {
	v := NewRepoValidator(&mockCouponRepo{err: errors.New("db down")})

	_, err := v.Evaluate(context.Background(), "X", "c", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.False(t, IsRejection(err))
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestRepoValidator_Redeem(t *testing.T) {
	repo := &mockCouponRepo{rule: &Rule{
		Code: "INC", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), Active: true,
	}}

	v := NewRepoValidator(repo)
	d, err := v.Redeem(context.Background(), "inc", "cust-1", "order-1", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(d.Amount))
	assert.Equal(t, []string{"INC/cust-1/order-1"}, repo.redeemed)
}

func TestRepoValidator_RedeemError(t *testing.T) {
	repo := &mockCouponRepo{
		rule: &Rule{
			Code: "FAIL", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), Active: true,
		},
		redeemErr: errors.New("db error"),
	}

	v := NewRepoValidator(repo)
	_, err := v.Redeem(context.Background(), "FAIL", "c", "o", decimal.NewFromInt(100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redeem coupon")
}

func TestRepoValidator_RedeemRejectedDoesNotRecord(t *testing.T) {
	repo := &mockCouponRepo{rule: &Rule{
		Code: "MAXED", DiscountType: DiscountFixed, Value: decimal.NewFromInt(5),
		UsageLimit: 1, UsageCount: 1, Active: true,
	}}

	v := NewRepoValidator(repo)
	_, err := v.Redeem(context.Background(), "MAXED", "c", "o", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrCouponUsageLimitReached)
	assert.Empty(t, repo.redeemed)
}

func TestApply_UnsupportedType(t *testing.T) {
	_, err := Apply(&Rule{DiscountType: "free_lowest"}, decimal.NewFromInt(10))
	require.Error(t, err)
}
