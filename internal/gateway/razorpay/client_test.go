package razorpay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/rental-ledger/internal/domain/payment"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", KeyID: "rzp_test_key", KeySecret: "s3cret"},
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	return c
}

func TestCreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "s3cret", pass)

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{
			"amount": 908000,
			"currency": "INR",
			"receipt": "INV/2025/00001",
			"notes": {"invoice_id": "inv-1", "order_id": "ord-1"}
		}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"order_Ncx1","entity":"order","amount":908000,"amount_paid":0,
			"currency":"INR","receipt":"INV/2025/00001","status":"created","notes":{"invoice_id":"inv-1"},"created_at":1736380800}`)
	})

	o, err := c.CreateOrder(context.Background(), payment.GatewayOrderRequest{
		AmountMinor: 908000,
		Currency:    "INR",
		Receipt:     "INV/2025/00001",
		Notes:       map[string]string{"order_id": "ord-1", "invoice_id": "inv-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, &payment.GatewayOrder{ID: "order_Ncx1", AmountMinor: 908000, Currency: "INR", Status: "created"}, o)
	assert.Equal(t, "rzp_test_key", c.KeyID())
}

func TestCreateOrder_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		unavailable bool
		code        string
	}{
		{"bad request", http.StatusBadRequest, `{"error":{"code":"BAD_REQUEST_ERROR","description":"amount must be atleast INR 1.00"}}`, false, "BAD_REQUEST_ERROR"},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`, false, "BAD_REQUEST_ERROR"},
		{"throttled", http.StatusTooManyRequests, `{}`, true, "Too Many Requests"},
		{"server error", http.StatusBadGateway, `<html>bad gateway</html>`, true, "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.CreateOrder(context.Background(), payment.GatewayOrderRequest{AmountMinor: 100, Currency: "INR"})

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.unavailable, errors.Is(err, payment.ErrGatewayUnavailable))
		})
	}
}

func TestCreateOrder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(Config{BaseURL: srv.URL, KeyID: "k", KeySecret: "s"},
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	_, err = c.CreateOrder(context.Background(), payment.GatewayOrderRequest{AmountMinor: 100, Currency: "INR"})
	require.ErrorIs(t, err, payment.ErrGatewayUnavailable)
}

func TestCreateOrder_MissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"created"}`)
	})
	_, err := c.CreateOrder(context.Background(), payment.GatewayOrderRequest{AmountMinor: 100, Currency: "INR"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, payment.ErrGatewayUnavailable))
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{KeyID: "k"}, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.Error(t, err)
}
