package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/rental-ledger/internal/domain/payment"
)

const (
	paymentColumns = `id, number, invoice_id, order_id, customer_id, amount, currency, method, status,
		COALESCE(gateway_order_id, ''), COALESCE(gateway_payment_id, ''), gateway_signature,
		reference, failure_reason, paid_at, created_at, updated_at`

	createPaymentSQL = `INSERT INTO payments (id, number, invoice_id, order_id, customer_id, amount,
		currency, method, status, gateway_order_id, gateway_payment_id, gateway_signature,
		reference, failure_reason, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12,
			$13, $14, $15, $16, $17)`

	getPaymentSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	lockPaymentByGatewayOrderSQL = `SELECT ` + paymentColumns + ` FROM payments
		WHERE gateway_order_id = $1 FOR UPDATE`

	updatePaymentSQL = `UPDATE payments SET status = $2, gateway_payment_id = NULLIF($3, ''),
		gateway_signature = $4, failure_reason = $5, paid_at = $6, updated_at = $7
		WHERE id = $1`

	listPaymentsSQL = `SELECT ` + paymentColumns + ` FROM payments
		WHERE ($1 = '' OR invoice_id = $1) AND ($2 = '' OR customer_id = $2)
		ORDER BY created_at`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	db *DB
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	_, err := r.db.q(ctx).Exec(ctx, createPaymentSQL,
		p.ID, p.Number, p.InvoiceID, p.OrderID, p.CustomerID, p.Amount,
		p.Currency, p.Method, p.Status, p.GatewayOrderID, p.GatewayPaymentID, p.GatewaySignature,
		p.Reference, p.FailureReason, p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create payment %q", p.ID)
	}
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return r.getOne(ctx, getPaymentSQL, id)
}

func (r *PaymentRepository) GetByGatewayOrderForUpdate(ctx context.Context, gatewayOrderID string) (*payment.Payment, error) {
	return r.getOne(ctx, lockPaymentByGatewayOrderSQL, gatewayOrderID)
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	tag, err := r.db.q(ctx).Exec(ctx, updatePaymentSQL,
		p.ID, p.Status, p.GatewayPaymentID, p.GatewaySignature, p.FailureReason, p.PaidAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update payment %q", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrNotFound
	}
	return nil
}

func (r *PaymentRepository) List(ctx context.Context, f payment.Filter) ([]payment.Payment, error) {
	rows, err := r.db.q(ctx).Query(ctx, listPaymentsSQL, f.InvoiceID, f.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "list payments")
	}
	return pgx.CollectRows(rows, scanPayment)
}

func (r *PaymentRepository) NextNumber(ctx context.Context, at time.Time) (int, error) {
	at = at.UTC()
	return r.db.next(ctx, fmt.Sprintf("payment:%04d%02d", at.Year(), int(at.Month())))
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, arg string) (*payment.Payment, error) {
	rows, err := r.db.q(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "get payment")
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, errors.Wrap(err, "get payment")
	}
	return &p, nil
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID, &p.Number, &p.InvoiceID, &p.OrderID, &p.CustomerID, &p.Amount, &p.Currency, &p.Method, &p.Status,
		&p.GatewayOrderID, &p.GatewayPaymentID, &p.GatewaySignature,
		&p.Reference, &p.FailureReason, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
