package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/rental-ledger/internal/domain/order"
)

const (
	orderColumns = `id, number, customer_id, vendor_id, status, rental_start, rental_end,
		subtotal, tax, security_deposit, delivery_charges, discount, coupon_code, total, late_fee,
		delivery_method, delivery_address, billing_address, terms_accepted, customer_notes,
		cancel_reason, confirmed_at, pickup, return_record, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`

	updateOrderSQL = `UPDATE orders SET
		status = $2, rental_start = $3, rental_end = $4,
		subtotal = $5, tax = $6, security_deposit = $7, delivery_charges = $8,
		discount = $9, coupon_code = $10, total = $11, late_fee = $12,
		delivery_method = $13, delivery_address = $14, billing_address = $15,
		terms_accepted = $16, customer_notes = $17, cancel_reason = $18,
		confirmed_at = $19, pickup = $20, return_record = $21, updated_at = $22
		WHERE id = $1`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	lockOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	getOrderByNumSQL = `SELECT ` + orderColumns + ` FROM orders WHERE number = $1`

	findOpenCartSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = $1 AND vendor_id = $2 AND status IN ('draft', 'quotation')
		FOR UPDATE`

	itemColumns = `id, order_id, product_id, product_name, product_sku, quantity,
		period_start, period_end, rental_period_type, billing_basis, months, weeks, days,
		unit_price, subtotal, tax, total, security_deposit, reservation_id`

	insertItemSQL = `INSERT INTO order_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	updateItemSQL = `UPDATE order_items SET
		quantity = $3, period_start = $4, period_end = $5, billing_basis = $6,
		months = $7, weeks = $8, days = $9, unit_price = $10, subtotal = $11,
		tax = $12, total = $13, security_deposit = $14, reservation_id = $15
		WHERE id = $1 AND order_id = $2`

	deleteItemSQL = `DELETE FROM order_items WHERE order_id = $1 AND id = $2`

	listItemsSQL = `SELECT ` + itemColumns + ` FROM order_items
		WHERE order_id = ANY($1) ORDER BY seq`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items
// live in order_items; item tax and totals are rewritten on every Update.
type OrderRepository struct {
	db *DB
}

// Create persists the order header and its items.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.db.InTx(ctx, func(ctx context.Context) error {
		_, err := r.db.q(ctx).Exec(ctx, createOrderSQL,
			o.ID, o.Number, o.CustomerID, o.VendorID, o.Status, o.RentalStart, o.RentalEnd,
			o.Subtotal, o.Tax, o.SecurityDeposit, o.DeliveryCharges, o.Discount, o.CouponCode, o.Total, o.LateFee,
			o.DeliveryMethod, o.DeliveryAddress, o.BillingAddress, o.TermsAccepted, o.CustomerNotes,
			o.CancelReason, o.ConfirmedAt, o.Pickup, o.Return, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "create order %q", o.ID)
		}
		for i := range o.Items {
			if err := r.AddItem(ctx, &o.Items[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderSQL, id)
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, lockOrderSQL, id)
}

func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByNumSQL, number)
}

func (r *OrderRepository) FindOpenCart(ctx context.Context, customerID, vendorID string) (*order.Order, error) {
	return r.getOne(ctx, findOpenCartSQL, customerID, vendorID)
}

// Update persists the header and the derived fields of every item.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	return r.db.InTx(ctx, func(ctx context.Context) error {
		tag, err := r.db.q(ctx).Exec(ctx, updateOrderSQL,
			o.ID, o.Status, o.RentalStart, o.RentalEnd,
			o.Subtotal, o.Tax, o.SecurityDeposit, o.DeliveryCharges,
			o.Discount, o.CouponCode, o.Total, o.LateFee,
			o.DeliveryMethod, o.DeliveryAddress, o.BillingAddress,
			o.TermsAccepted, o.CustomerNotes, o.CancelReason,
			o.ConfirmedAt, o.Pickup, o.Return, o.UpdatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "update order %q", o.ID)
		}
		if tag.RowsAffected() == 0 {
			return order.ErrNotFound
		}
		for i := range o.Items {
			if err := r.UpdateItem(ctx, &o.Items[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *OrderRepository) AddItem(ctx context.Context, it *order.Item) error {
	_, err := r.db.q(ctx).Exec(ctx, insertItemSQL,
		it.ID, it.OrderID, it.ProductID, it.ProductName, it.ProductSKU, it.Quantity,
		it.RentalPeriod.Start, it.RentalPeriod.End, it.RentalPeriodType, it.Basis,
		it.Months, it.Weeks, it.Days,
		it.UnitPrice, it.Subtotal, it.Tax, it.Total, it.SecurityDeposit, it.ReservationID,
	)
	if err != nil {
		return errors.Wrapf(err, "add item %q", it.ID)
	}
	return nil
}

func (r *OrderRepository) UpdateItem(ctx context.Context, it *order.Item) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateItemSQL,
		it.ID, it.OrderID, it.Quantity, it.RentalPeriod.Start, it.RentalPeriod.End, it.Basis,
		it.Months, it.Weeks, it.Days, it.UnitPrice, it.Subtotal,
		it.Tax, it.Total, it.SecurityDeposit, it.ReservationID,
	)
	if err != nil {
		return errors.Wrapf(err, "update item %q", it.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrItemNotFound
	}
	return nil
}

func (r *OrderRepository) RemoveItem(ctx context.Context, orderID, itemID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, deleteItemSQL, orderID, itemID)
	if err != nil {
		return errors.Wrapf(err, "remove item %q", itemID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrItemNotFound
	}
	return nil
}

// List returns a page of orders, newest first, and the total match count.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, int, error) {
	where, args := orderWhere(f)
	limit, offset := limitOffset(f.Page, f.PerPage)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s, count(*) OVER () FROM orders %s
		ORDER BY created_at DESC, number LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	var total int
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Order, error) {
		o, dest := orderDest()
		err := row.Scan(append(dest, &total)...)
		return *o, err
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepository) NextNumber(ctx context.Context, at time.Time) (int, error) {
	at = at.UTC()
	return r.db.next(ctx, fmt.Sprintf("order:%04d%02d", at.Year(), int(at.Month())))
}

func (r *OrderRepository) getOne(ctx context.Context, query string, args ...any) (*order.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	orders := []order.Order{o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.db.q(ctx).Query(ctx, listItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list order items")
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return errors.Wrap(err, "list order items")
	}
	for _, it := range items {
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return nil
}

func orderWhere(f order.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.VendorID != "" {
		add("vendor_id = $%d", f.VendorID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}
	if f.CreatedAfter != nil {
		add("created_at >= $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		add("created_at < $%d", *f.CreatedBefore)
	}
	if f.EndsAfter != nil {
		add("rental_end > $%d", *f.EndsAfter)
	}
	if f.EndsBefore != nil {
		add("rental_end <= $%d", *f.EndsBefore)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func orderDest() (*order.Order, []any) {
	o := &order.Order{}
	return o, []any{
		&o.ID, &o.Number, &o.CustomerID, &o.VendorID, &o.Status, &o.RentalStart, &o.RentalEnd,
		&o.Subtotal, &o.Tax, &o.SecurityDeposit, &o.DeliveryCharges, &o.Discount, &o.CouponCode, &o.Total, &o.LateFee,
		&o.DeliveryMethod, &o.DeliveryAddress, &o.BillingAddress, &o.TermsAccepted, &o.CustomerNotes,
		&o.CancelReason, &o.ConfirmedAt, &o.Pickup, &o.Return, &o.CreatedAt, &o.UpdatedAt,
	}
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	o, dest := orderDest()
	err := row.Scan(dest...)
	return *o, err
}

func scanItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductSKU, &it.Quantity,
		&it.RentalPeriod.Start, &it.RentalPeriod.End, &it.RentalPeriodType, &it.Basis,
		&it.Months, &it.Weeks, &it.Days,
		&it.UnitPrice, &it.Subtotal, &it.Tax, &it.Total, &it.SecurityDeposit, &it.ReservationID,
	)
	return it, err
}
