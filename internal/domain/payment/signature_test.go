package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	assert.Equal(t,
		"52115a0d3400de9e86aade1f1b6eba9e8974604f4e267a9e9a16633a4c8dd2cb",
		Sign("secret", "order_1", "pay_1"),
	)
}

func TestVerifySignature(t *testing.T) {
	good := Sign("secret", "order_1", "pay_1")

	tests := []struct {
		name      string
		secret    string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid", "secret", "order_1", "pay_1", good, true},
		{"wrong secret", "other", "order_1", "pay_1", good, false},
		{"swapped payment", "secret", "order_1", "pay_2", good, false},
		{"empty secret", "", "order_1", "pay_1", Sign("", "order_1", "pay_1"), false},
		{"empty signature", "secret", "order_1", "pay_1", "", false},
		{"uppercase hex", "secret", "order_1", "pay_1", "52115A0D3400DE9E86AADE1F1B6EBA9E8974604F4E267A9E9A16633A4C8DD2CB", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(tt.secret, tt.orderID, tt.paymentID, tt.signature))
		})
	}
}

func TestToMinor(t *testing.T) {
	assert.Equal(t, int64(123456), ToMinor(decimal.RequireFromString("1234.56")))
	assert.Equal(t, int64(1001), ToMinor(decimal.RequireFromString("10.005")))
	assert.Equal(t, int64(0), ToMinor(decimal.Zero))
}
