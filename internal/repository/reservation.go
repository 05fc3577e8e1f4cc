package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/rental-ledger/internal/domain/inventory"
	"github.com/xenking/rental-ledger/internal/domain/period"
)

const (
	reservationColumns = `id, product_id, order_id, order_item_id, period_start, period_end,
		quantity, status, expires_at, created_at`

	createReservationSQL = `INSERT INTO reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	lockReservationSQL = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`

	updateReservationStatusSQL = `UPDATE reservations SET status = $2, expires_at = $3 WHERE id = $1`

	// Half-open ranges [a,b) and [c,d) overlap iff a < d and c < b.
	listOverlappingSQL = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE product_id = $1
			AND status IN ('held', 'confirmed', 'committed')
			AND period_start < $3 AND $2 < period_end`

	listReservationsByOrderSQL = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE order_id = $1 ORDER BY created_at`

	releaseExpiredSQL = `UPDATE reservations SET status = 'released'
		WHERE status = 'held' AND expires_at IS NOT NULL AND expires_at <= $1`
)

var _ inventory.Repository = (*ReservationRepository)(nil)

// ReservationRepository implements inventory.Repository backed by PostgreSQL.
type ReservationRepository struct {
	db *DB
}

func (r *ReservationRepository) Create(ctx context.Context, res *inventory.Reservation) error {
	_, err := r.db.q(ctx).Exec(ctx, createReservationSQL,
		res.ID, res.ProductID, res.OrderID, res.OrderItemID,
		res.Range.Start, res.Range.End, res.Quantity, res.Status,
		res.ExpiresAt, res.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create reservation %q", res.ID)
	}
	return nil
}

func (r *ReservationRepository) GetForUpdate(ctx context.Context, id string) (*inventory.Reservation, error) {
	rows, err := r.db.q(ctx).Query(ctx, lockReservationSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get reservation %q", id)
	}
	res, err := pgx.CollectExactlyOneRow(rows, scanReservation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, inventory.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get reservation %q", id)
	}
	return &res, nil
}

func (r *ReservationRepository) UpdateStatus(ctx context.Context, id string, status inventory.Status, expiresAt *time.Time) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateReservationStatusSQL, id, status, expiresAt)
	if err != nil {
		return errors.Wrapf(err, "update reservation %q", id)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

func (r *ReservationRepository) ListOverlapping(ctx context.Context, productID string, rng period.Range) ([]inventory.Reservation, error) {
	rows, err := r.db.q(ctx).Query(ctx, listOverlappingSQL, productID, rng.Start, rng.End)
	if err != nil {
		return nil, errors.Wrapf(err, "list reservations of product %q", productID)
	}
	return pgx.CollectRows(rows, scanReservation)
}

func (r *ReservationRepository) ListByOrder(ctx context.Context, orderID string) ([]inventory.Reservation, error) {
	rows, err := r.db.q(ctx).Query(ctx, listReservationsByOrderSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "list reservations of order %q", orderID)
	}
	return pgx.CollectRows(rows, scanReservation)
}

func (r *ReservationRepository) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.q(ctx).Exec(ctx, releaseExpiredSQL, now)
	if err != nil {
		return 0, errors.Wrap(err, "release expired holds")
	}
	return int(tag.RowsAffected()), nil
}

func scanReservation(row pgx.CollectableRow) (inventory.Reservation, error) {
	var res inventory.Reservation
	err := row.Scan(
		&res.ID, &res.ProductID, &res.OrderID, &res.OrderItemID,
		&res.Range.Start, &res.Range.End, &res.Quantity, &res.Status,
		&res.ExpiresAt, &res.CreatedAt,
	)
	return res, err
}
