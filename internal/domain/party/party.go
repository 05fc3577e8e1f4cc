// Package party holds the customers, vendors and admins the ledger bills and
// snapshots onto invoices.
package party

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a party does not exist.
var ErrNotFound = errors.New("party not found")

// Role is the marketplace role of a party.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// Party is a customer, vendor or admin account.
type Party struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	Name        string `json:"name"`
	CompanyName string `json:"company_name,omitempty"`
	GSTIN       string `json:"gstin,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Repository provides party lookups.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Party, error)
}
