package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrNegativeStock is returned when on-hand quantity would drop below zero.
	ErrNegativeStock = errors.New("quantity on hand must not be negative")
)

// RateCard is the rental price table of a product. Weekly and Monthly are
// optional; zero means the tier is not offered.
type RateCard struct {
	Daily   decimal.Decimal `json:"daily"`
	Weekly  decimal.Decimal `json:"weekly"`
	Monthly decimal.Decimal `json:"monthly"`
}

// Product is a rentable catalog item owned by a vendor.
type Product struct {
	ID              string          `json:"id"`
	VendorID        string          `json:"vendor_id"`
	Name            string          `json:"name"`
	SKU             string          `json:"sku"`
	Rates           RateCard        `json:"rates"`
	SecurityDeposit decimal.Decimal `json:"security_deposit"`
	QuantityOnHand  int             `json:"quantity_on_hand"`
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetForUpdate loads the product and locks its row until the surrounding
	// transaction ends. All reservations against the product serialize on it.
	GetForUpdate(ctx context.Context, id string) (*Product, error)
	SetQuantityOnHand(ctx context.Context, id string, qty int) error
}
