// Package repository implements the domain repositories on PostgreSQL.
package repository

import (
	"context"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/xenking/rental-ledger/db"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}

	return pool, nil
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(db.Migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}
	if err := goose.UpContext(ctx, sqlDB, db.MigrationsDir); err != nil {
		return errors.Wrap(err, "goose up")
	}
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type txKey struct{}

// DB hands out repositories that share the transaction carried by ctx.
type DB struct {
	pool *pgxpool.Pool
}

// New wraps pool.
func New(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

// InTx runs fn in one transaction. Repository calls made with the ctx handed
// to fn use that transaction; nested InTx calls join it. The transaction is
// rolled back when fn returns an error.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *DB) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return d.pool
}

// next allocates the next value of the named counter.
func (d *DB) next(ctx context.Context, name string) (int, error) {
	const nextSequenceSQL = `INSERT INTO sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value`

	var n int
	if err := d.q(ctx).QueryRow(ctx, nextSequenceSQL, name).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "next value of %s", name)
	}
	return n, nil
}

func (d *DB) Products() *ProductRepository { return &ProductRepository{db: d} }
func (d *DB) Parties() *PartyRepository { return &PartyRepository{db: d} }
func (d *DB) APIKeys() *APIKeyRepository { return &APIKeyRepository{db: d} }
func (d *DB) Reservations() *ReservationRepository { return &ReservationRepository{db: d} }
func (d *DB) Orders() *OrderRepository { return &OrderRepository{db: d} }
func (d *DB) Invoices() *InvoiceRepository { return &InvoiceRepository{db: d} }
func (d *DB) Payments() *PaymentRepository { return &PaymentRepository{db: d} }
func (d *DB) Coupons() *CouponRepository { return &CouponRepository{db: d} }
func (d *DB) Reports() *ReportRepository { return &ReportRepository{db: d} }

// limitOffset returns LIMIT and OFFSET arguments for a 1-based page. A nil
// limit means no limit.
func limitOffset(page, perPage int) (limit any, offset int) {
	if perPage <= 0 {
		return nil, 0
	}
	if page < 1 {
		page = 1
	}
	return perPage, (page - 1) * perPage
}
