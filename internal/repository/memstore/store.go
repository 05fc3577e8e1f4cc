// Package memstore is an in-memory implementation of every repository, used
// as test support by the service and handler tests. It is not wired into any
// binary. All transactions are serialized on one mutex and roll back by
// restoring a snapshot, which gives the same isolation the Postgres row locks
// provide.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xenking/rental-ledger/internal/domain/auth"
	"github.com/xenking/rental-ledger/internal/domain/coupon"
	"github.com/xenking/rental-ledger/internal/domain/inventory"
	"github.com/xenking/rental-ledger/internal/domain/invoice"
	"github.com/xenking/rental-ledger/internal/domain/order"
	"github.com/xenking/rental-ledger/internal/domain/party"
	"github.com/xenking/rental-ledger/internal/domain/payment"
	"github.com/xenking/rental-ledger/internal/domain/product"
)

type txKey struct{}

type redemption struct {
	code       string
	customerID string
	orderID    string
}

type state struct {
	products     map[string]product.Product
	parties      map[string]party.Party
	apiKeys      map[string]auth.APIKeyInfo
	reservations map[string]inventory.Reservation
	orders       map[string]order.Order
	items        map[string][]order.Item
	invoices     map[string]invoice.Invoice
	payments     map[string]payment.Payment
	coupons      map[string]coupon.Rule
	redemptions  []redemption
	sequences    map[string]int
}

func newState() *state {
	return &state{
		products:     map[string]product.Product{},
		parties:      map[string]party.Party{},
		apiKeys:      map[string]auth.APIKeyInfo{},
		reservations: map[string]inventory.Reservation{},
		orders:       map[string]order.Order{},
		items:        map[string][]order.Item{},
		invoices:     map[string]invoice.Invoice{},
		payments:     map[string]payment.Payment{},
		coupons:      map[string]coupon.Rule{},
		sequences:    map[string]int{},
	}
}

func (s *state) clone() *state {
	c := &state{
		products:     maps.Clone(s.products),
		parties:      maps.Clone(s.parties),
		apiKeys:      maps.Clone(s.apiKeys),
		reservations: maps.Clone(s.reservations),
		orders:       maps.Clone(s.orders),
		items:        make(map[string][]order.Item, len(s.items)),
		invoices:     maps.Clone(s.invoices),
		payments:     maps.Clone(s.payments),
		coupons:      maps.Clone(s.coupons),
		redemptions:  slices.Clone(s.redemptions),
		sequences:    maps.Clone(s.sequences),
	}
	for k, v := range s.items {
		c.items[k] = slices.Clone(v)
	}
	return c
}

// Store holds all entities in memory.
type Store struct {
	mu   sync.Mutex
	data *state
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: newState()}
}

// InTx runs fn holding the store lock. Nested calls join the outer
// transaction. If fn fails every write made through ctx is undone.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// do runs fn against the current state, taking the lock unless ctx already
// holds it.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if inTx(ctx) {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) next(st *state, key string) int {
	st.sequences[key]++
	return st.sequences[key]
}

// Products returns the product repository.
func (s *Store) Products() *Products { return &Products{s: s} }

// Parties returns the party repository.
func (s *Store) Parties() *Parties { return &Parties{s: s} }

// APIKeys returns the API key repository.
func (s *Store) APIKeys() *APIKeys { return &APIKeys{s: s} }

// Reservations returns the reservation repository.
func (s *Store) Reservations() *Reservations { return &Reservations{s: s} }

// Orders returns the order repository.
func (s *Store) Orders() *Orders { return &Orders{s: s} }

// Invoices returns the invoice repository.
func (s *Store) Invoices() *Invoices { return &Invoices{s: s} }

// Payments returns the payment repository.
func (s *Store) Payments() *Payments { return &Payments{s: s} }

// Coupons returns the coupon repository.
func (s *Store) Coupons() *Coupons { return &Coupons{s: s} }

// Reports returns the dashboard aggregate repository.
func (s *Store) Reports() *Reports { return &Reports{s: s} }

// page slices items for 1-based page numbers. perPage <= 0 returns all.
func page[T any](items []T, pageNum, perPage int) []T {
	if perPage <= 0 {
		return items
	}
	if pageNum < 1 {
		pageNum = 1
	}
	from := (pageNum - 1) * perPage
	if from >= len(items) {
		return nil
	}
	to := min(from+perPage, len(items))
	return items[from:to]
}
