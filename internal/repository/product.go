package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/rental-ledger/internal/domain/product"
)

const (
	productColumns = `id, vendor_id, name, sku, daily_rate, weekly_rate, monthly_rate,
		security_deposit, quantity_on_hand`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	lockProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	setQuantityOnHandSQL = `UPDATE products SET quantity_on_hand = $2 WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			vendor_id = EXCLUDED.vendor_id, name = EXCLUDED.name, sku = EXCLUDED.sku,
			daily_rate = EXCLUDED.daily_rate, weekly_rate = EXCLUDED.weekly_rate,
			monthly_rate = EXCLUDED.monthly_rate, security_deposit = EXCLUDED.security_deposit,
			quantity_on_hand = EXCLUDED.quantity_on_hand`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db *DB
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.get(ctx, getProductByIDSQL, id)
}

// GetForUpdate returns the product and locks its row for the rest of the
// transaction.
func (r *ProductRepository) GetForUpdate(ctx context.Context, id string) (*product.Product, error) {
	return r.get(ctx, lockProductSQL, id)
}

func (r *ProductRepository) get(ctx context.Context, query, id string) (*product.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// SetQuantityOnHand overwrites the on-hand stock of a product.
func (r *ProductRepository) SetQuantityOnHand(ctx context.Context, id string, qty int) error {
	if qty < 0 {
		return product.ErrNegativeStock
	}
	tag, err := r.db.q(ctx).Exec(ctx, setQuantityOnHandSQL, id, qty)
	if err != nil {
		return errors.Wrapf(err, "set stock of product %q", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Upsert inserts or replaces a product. Used by the seeder.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	_, err := r.db.q(ctx).Exec(ctx, upsertProductSQL,
		p.ID, p.VendorID, p.Name, p.SKU,
		p.Rates.Daily, p.Rates.Weekly, p.Rates.Monthly,
		p.SecurityDeposit, p.QuantityOnHand,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.VendorID, &p.Name, &p.SKU,
		&p.Rates.Daily, &p.Rates.Weekly, &p.Rates.Monthly,
		&p.SecurityDeposit, &p.QuantityOnHand,
	)
	return p, err
}
