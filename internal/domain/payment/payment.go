// Package payment records gateway and manual payments against invoices.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method is how a payment was made.
type Method string

const (
	MethodGateway      Method = "gateway"
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
)

// Status is the state of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrNotFound = errors.New("payment not found")
	// ErrVerificationFailed is returned when a gateway signature does not
	// match. The invoice is never credited in that case.
	ErrVerificationFailed = errors.New("payment verification failed")
	// ErrVerificationInProgress is returned when the same gateway payment is
	// being verified concurrently.
	ErrVerificationInProgress = errors.New("payment verification already in progress")
	ErrInvalidMethod          = errors.New("manual payments must be cash or bank_transfer")
	// ErrGatewayUnavailable wraps transport failures talking to the gateway.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Payment is a single credit against an invoice.
type Payment struct {
	ID               string          `json:"id"`
	Number           string          `json:"payment_number"`
	InvoiceID        string          `json:"invoice_id"`
	OrderID          string          `json:"order_id"`
	CustomerID       string          `json:"customer_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Method           Method          `json:"method"`
	Status           Status          `json:"status"`
	GatewayOrderID   string          `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	GatewaySignature string          `json:"-"`
	Reference        string          `json:"reference,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// FormatNumber renders a payment number as PAY{YYYYMM}{seq:05d}.
func FormatNumber(at time.Time, seq int) string {
	return fmt.Sprintf("PAY%04d%02d%05d", at.Year(), int(at.Month()), seq)
}

// ToMinor converts an amount to the gateway's minor units (paise).
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

// Filter narrows payment listings.
type Filter struct {
	InvoiceID  string
	CustomerID string
}

// Repository persists payments. Implementations join the transaction carried
// by ctx when there is one.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByGatewayOrderForUpdate(ctx context.Context, gatewayOrderID string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	List(ctx context.Context, f Filter) ([]Payment, error)
	NextNumber(ctx context.Context, at time.Time) (int, error)
}

// GatewayOrderRequest asks the gateway to open a checkout order.
type GatewayOrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// GatewayOrder is the gateway's view of a checkout order.
type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Status      string
}

// Gateway is the external payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error)
	// KeyID is the public key the client checkout widget needs.
	KeyID() string
}

// IdempotencyGuard short-circuits duplicate verifications before they reach
// the database.
type IdempotencyGuard interface {
	// Acquire returns true if key was not seen before.
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Transactor runs fn in one database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
