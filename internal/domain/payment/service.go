package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/rental-ledger/internal/domain/event"
	"github.com/xenking/rental-ledger/internal/domain/invoice"
)

// Config holds payment settings.
type Config struct {
	Currency string
	// Secret is the gateway key secret used for signature verification.
	Secret string
}

// Deps are the collaborators of Service.
type Deps struct {
	Tx       Transactor
	Payments Repository
	Invoices invoice.Repository
	Gateway  Gateway
	Guard    IdempotencyGuard
	Events   event.Publisher
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Service opens gateway checkouts, verifies their callbacks and records
// manual payments.
type Service struct {
	tx       Transactor
	payments Repository
	invoices invoice.Repository
	gateway  Gateway
	guard    IdempotencyGuard
	events   event.Publisher
	cfg      Config
	now      func() time.Time
}

// NewService creates a payment Service.
func NewService(d Deps, cfg Config) *Service {
	events := d.Events
	if events == nil {
		events = event.Nop{}
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		tx:       d.Tx,
		payments: d.Payments,
		invoices: d.Invoices,
		gateway:  d.Gateway,
		guard:    d.Guard,
		events:   events,
		cfg:      cfg,
		now:      now,
	}
}

// CheckoutRequest opens a gateway order for an invoice. A zero Amount means
// the full amount due.
type CheckoutRequest struct {
	InvoiceID  string
	CustomerID string
	Amount     decimal.Decimal
}

// Checkout is what the client needs to open the gateway widget.
type Checkout struct {
	PaymentID      string          `json:"payment_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	Amount         decimal.Decimal `json:"amount"`
	AmountMinor    int64           `json:"amount_minor"`
	Currency       string          `json:"currency"`
	KeyID          string          `json:"key_id"`
}

// CreateGatewayOrder opens a checkout order at the gateway and records a
// pending payment for it.
func (s *Service) CreateGatewayOrder(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	inv, err := s.invoices.Get(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if req.CustomerID != "" && inv.Customer.ID != req.CustomerID {
		return nil, invoice.ErrNotFound
	}
	switch inv.Status {
	case invoice.StatusPaid, invoice.StatusCancelled:
		return nil, &invoice.StateError{InvoiceID: inv.ID, Status: inv.Status, Action: "pay"}
	}

	amount := req.Amount
	if amount.IsZero() {
		amount = inv.AmountDue
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, invoice.ErrInvalidAmount
	}
	if amount.GreaterThan(inv.AmountDue) {
		return nil, &invoice.OverpaymentError{InvoiceID: inv.ID, Amount: amount, AmountDue: inv.AmountDue}
	}

	gw, err := s.gateway.CreateOrder(ctx, GatewayOrderRequest{
		AmountMinor: ToMinor(amount),
		Currency:    s.cfg.Currency,
		Receipt:     inv.Number,
		Notes: map[string]string{
			"invoice_id": inv.ID,
			"order_id":   inv.OrderID,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gateway order")
	}

	now := s.now()
	p := &Payment{
		ID:             uuid.New().String(),
		InvoiceID:      inv.ID,
		OrderID:        inv.OrderID,
		CustomerID:     inv.Customer.ID,
		Amount:         amount,
		Currency:       s.cfg.Currency,
		Method:         MethodGateway,
		Status:         StatusPending,
		GatewayOrderID: gw.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		seq, err := s.payments.NextNumber(ctx, now)
		if err != nil {
			return errors.Wrap(err, "allocate payment number")
		}
		p.Number = FormatNumber(now, seq)
		return s.payments.Create(ctx, p)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create payment")
	}

	zctx.From(ctx).Info("Gateway order created",
		zap.String("invoice_id", inv.ID),
		zap.String("gateway_order_id", gw.ID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return &Checkout{
		PaymentID:      p.ID,
		GatewayOrderID: gw.ID,
		InvoiceNumber:  inv.Number,
		Amount:         amount,
		AmountMinor:    ToMinor(amount),
		Currency:       s.cfg.Currency,
		KeyID:          s.gateway.KeyID(),
	}, nil
}

// VerifyRequest is the gateway callback relayed by the client.
type VerifyRequest struct {
	// CustomerID scopes the lookup to the caller; empty skips the check.
	CustomerID       string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Verify checks the gateway signature and credits the invoice. It fails
// closed: a bad signature marks the payment failed and never touches the
// invoice. Verifying the same gateway payment again returns the completed
// payment without crediting twice.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*Payment, error) {
	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		return nil, ErrVerificationFailed
	}
	lg := zctx.From(ctx).With(
		zap.String("gateway_order_id", req.GatewayOrderID),
		zap.String("gateway_payment_id", req.GatewayPaymentID),
	)

	key := "payment:verify:" + req.GatewayPaymentID
	first := true
	if s.guard != nil {
		ok, err := s.guard.Acquire(ctx, key)
		if err != nil {
			lg.Warn("Idempotency guard unavailable", zap.Error(err))
		} else {
			first = ok
		}
	}
	if !first {
		return s.replay(ctx, req)
	}

	var (
		out       *Payment
		verifyErr error
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByGatewayOrderForUpdate(ctx, req.GatewayOrderID)
		if err != nil {
			return err
		}
		if !ownedBy(p, req.CustomerID) {
			return ErrNotFound
		}

		switch p.Status {
		case StatusCompleted:
			if p.GatewayPaymentID != req.GatewayPaymentID {
				verifyErr = ErrVerificationFailed
				return nil
			}
			out = p
			return nil
		case StatusFailed:
			verifyErr = ErrVerificationFailed
			return nil
		}

		now := s.now()
		p.GatewayPaymentID = req.GatewayPaymentID
		p.GatewaySignature = req.Signature
		p.UpdatedAt = now

		if !VerifySignature(s.cfg.Secret, req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
			p.Status = StatusFailed
			p.FailureReason = "signature mismatch"
			if err := s.payments.Update(ctx, p); err != nil {
				return errors.Wrap(err, "mark payment failed")
			}
			verifyErr = ErrVerificationFailed
			return nil
		}

		inv, err := s.invoices.GetForUpdate(ctx, p.InvoiceID)
		if err != nil {
			return errors.Wrap(err, "lock invoice")
		}
		if err := inv.ApplyPayment(p.Amount); err != nil {
			return err
		}
		inv.UpdatedAt = now
		if err := s.invoices.Update(ctx, inv); err != nil {
			return errors.Wrap(err, "update invoice")
		}

		p.Status = StatusCompleted
		p.PaidAt = &now
		if err := s.payments.Update(ctx, p); err != nil {
			return errors.Wrap(err, "complete payment")
		}
		out = p
		return nil
	})
	if err == nil && verifyErr != nil {
		err = verifyErr
	}
	if err != nil {
		if !errors.Is(err, ErrVerificationFailed) {
			s.forget(ctx, key)
		}
		lg.Warn("Payment verification rejected", zap.Error(err))
		return nil, err
	}

	lg.Info("Payment verified", zap.String("payment_id", out.ID))
	s.events.Publish(ctx, event.Event{Type: event.PaymentCompleted, Key: out.OrderID, Payload: out})
	return out, nil
}

// ManualRequest records a cash or bank transfer payment.
type ManualRequest struct {
	InvoiceID string
	VendorID  string
	Amount    decimal.Decimal
	Method    Method
	Reference string
}

// RecordManual credits the invoice with an offline payment.
func (s *Service) RecordManual(ctx context.Context, req ManualRequest) (*Payment, error) {
	if req.Method != MethodCash && req.Method != MethodBankTransfer {
		return nil, ErrInvalidMethod
	}
	amount := req.Amount.Round(2)

	var out *Payment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetForUpdate(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if req.VendorID != "" && inv.Vendor.ID != req.VendorID {
			return invoice.ErrNotFound
		}
		if err := inv.ApplyPayment(amount); err != nil {
			return err
		}

		now := s.now()
		inv.UpdatedAt = now
		if err := s.invoices.Update(ctx, inv); err != nil {
			return errors.Wrap(err, "update invoice")
		}

		seq, err := s.payments.NextNumber(ctx, now)
		if err != nil {
			return errors.Wrap(err, "allocate payment number")
		}
		p := &Payment{
			ID:         uuid.New().String(),
			Number:     FormatNumber(now, seq),
			InvoiceID:  inv.ID,
			OrderID:    inv.OrderID,
			CustomerID: inv.Customer.ID,
			Amount:     amount,
			Currency:   s.cfg.Currency,
			Method:     req.Method,
			Status:     StatusCompleted,
			Reference:  req.Reference,
			PaidAt:     &now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return errors.Wrap(err, "create payment")
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Manual payment recorded",
		zap.String("invoice_id", out.InvoiceID),
		zap.String("method", string(out.Method)),
		zap.String("amount", out.Amount.StringFixed(2)),
	)
	s.events.Publish(ctx, event.Event{Type: event.PaymentCompleted, Key: out.OrderID, Payload: out})
	return out, nil
}

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, id string) (*Payment, error) {
	return s.payments.Get(ctx, id)
}

// List returns payments matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Payment, error) {
	return s.payments.List(ctx, f)
}

// replay answers a verification the guard has already seen. A completed
// payment with the same gateway payment id is returned as is.
func (s *Service) replay(ctx context.Context, req VerifyRequest) (*Payment, error) {
	var out *Payment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByGatewayOrderForUpdate(ctx, req.GatewayOrderID)
		if err != nil {
			return err
		}
		if !ownedBy(p, req.CustomerID) {
			return ErrNotFound
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	switch {
	case out.Status == StatusCompleted && out.GatewayPaymentID == req.GatewayPaymentID:
		return out, nil
	case out.Status == StatusPending:
		return nil, ErrVerificationInProgress
	default:
		return nil, ErrVerificationFailed
	}
}

// ownedBy reports whether p belongs to customerID. Foreign payments look
// missing so one customer cannot settle or fail another's checkout.
func ownedBy(p *Payment, customerID string) bool {
	return customerID == "" || p.CustomerID == customerID
}

func (s *Service) forget(ctx context.Context, key string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, key); err != nil {
		zctx.From(ctx).Warn("Release idempotency key", zap.String("key", key), zap.Error(err))
	}
}
