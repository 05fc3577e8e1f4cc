package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/xenking/rental-ledger/internal/domain/auth"
	"github.com/xenking/rental-ledger/internal/domain/coupon"
	"github.com/xenking/rental-ledger/internal/domain/inventory"
	"github.com/xenking/rental-ledger/internal/domain/party"
	"github.com/xenking/rental-ledger/internal/domain/period"
	"github.com/xenking/rental-ledger/internal/domain/product"
)

var (
	_ product.Repository   = (*Products)(nil)
	_ party.Repository     = (*Parties)(nil)
	_ auth.Repository      = (*APIKeys)(nil)
	_ inventory.Repository = (*Reservations)(nil)
	_ coupon.Repository    = (*Coupons)(nil)
)

// Products implements product.Repository.
type Products struct{ s *Store }

// Put inserts or replaces a product.
func (r *Products) Put(ctx context.Context, p product.Product) {
	_ = r.s.do(ctx, func(st *state) error {
		st.products[p.ID] = p
		return nil
	})
}

func (r *Products) List(ctx context.Context) ([]product.Product, error) {
	var out []product.Product
	err := r.s.do(ctx, func(st *state) error {
		for _, p := range st.products {
			out = append(out, p)
		}
		slices.SortFunc(out, func(a, b product.Product) int { return cmp.Compare(a.ID, b.ID) })
		return nil
	})
	return out, err
}

func (r *Products) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var out *product.Product
	err := r.s.do(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return product.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *Products) GetForUpdate(ctx context.Context, id string) (*product.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *Products) SetQuantityOnHand(ctx context.Context, id string, qty int) error {
	if qty < 0 {
		return product.ErrNegativeStock
	}
	return r.s.do(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return product.ErrNotFound
		}
		p.QuantityOnHand = qty
		st.products[id] = p
		return nil
	})
}

// Parties implements party.Repository.
type Parties struct{ s *Store }

// Put inserts or replaces a party.
func (r *Parties) Put(ctx context.Context, p party.Party) {
	_ = r.s.do(ctx, func(st *state) error {
		st.parties[p.ID] = p
		return nil
	})
}

func (r *Parties) GetByID(ctx context.Context, id string) (*party.Party, error) {
	var out *party.Party
	err := r.s.do(ctx, func(st *state) error {
		p, ok := st.parties[id]
		if !ok {
			return party.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

// APIKeys implements auth.Repository.
type APIKeys struct{ s *Store }

// Put stores a key info under its hash.
func (r *APIKeys) Put(ctx context.Context, info auth.APIKeyInfo) {
	_ = r.s.do(ctx, func(st *state) error {
		st.apiKeys[info.KeyHash] = info
		return nil
	})
}

func (r *APIKeys) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var out *auth.APIKeyInfo
	err := r.s.do(ctx, func(st *state) error {
		info, ok := st.apiKeys[hash]
		if !ok {
			return auth.ErrUnauthorized
		}
		out = &info
		return nil
	})
	return out, err
}

// Reservations implements inventory.Repository.
type Reservations struct{ s *Store }

func (r *Reservations) Create(ctx context.Context, res *inventory.Reservation) error {
	return r.s.do(ctx, func(st *state) error {
		st.reservations[res.ID] = *res
		return nil
	})
}

// Get returns a reservation by id.
func (r *Reservations) Get(ctx context.Context, id string) (*inventory.Reservation, error) {
	var out *inventory.Reservation
	err := r.s.do(ctx, func(st *state) error {
		res, ok := st.reservations[id]
		if !ok {
			return inventory.ErrNotFound
		}
		out = &res
		return nil
	})
	return out, err
}

func (r *Reservations) GetForUpdate(ctx context.Context, id string) (*inventory.Reservation, error) {
	return r.Get(ctx, id)
}

func (r *Reservations) UpdateStatus(ctx context.Context, id string, status inventory.Status, expiresAt *time.Time) error {
	return r.s.do(ctx, func(st *state) error {
		res, ok := st.reservations[id]
		if !ok {
			return inventory.ErrNotFound
		}
		res.Status = status
		res.ExpiresAt = expiresAt
		st.reservations[id] = res
		return nil
	})
}

func (r *Reservations) ListOverlapping(ctx context.Context, productID string, rng period.Range) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	err := r.s.do(ctx, func(st *state) error {
		for _, res := range st.reservations {
			if res.ProductID != productID || !res.Range.Overlaps(rng) {
				continue
			}
			switch res.Status {
			case inventory.StatusHeld, inventory.StatusConfirmed, inventory.StatusCommitted:
				out = append(out, res)
			}
		}
		return nil
	})
	return out, err
}

func (r *Reservations) ListByOrder(ctx context.Context, orderID string) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	err := r.s.do(ctx, func(st *state) error {
		for _, res := range st.reservations {
			if res.OrderID == orderID {
				out = append(out, res)
			}
		}
		slices.SortFunc(out, func(a, b inventory.Reservation) int { return a.CreatedAt.Compare(b.CreatedAt) })
		return nil
	})
	return out, err
}

func (r *Reservations) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := r.s.do(ctx, func(st *state) error {
		for id, res := range st.reservations {
			if res.Status != inventory.StatusHeld || res.ExpiresAt == nil || res.ExpiresAt.After(now) {
				continue
			}
			res.Status = inventory.StatusReleased
			res.ExpiresAt = nil
			st.reservations[id] = res
			n++
		}
		return nil
	})
	return n, err
}

// Coupons implements coupon.Repository.
type Coupons struct{ s *Store }

func (r *Coupons) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	var out *coupon.Rule
	err := r.s.do(ctx, func(st *state) error {
		rule, ok := st.coupons[coupon.Normalize(code)]
		if !ok {
			return coupon.ErrInvalidCoupon
		}
		out = &rule
		return nil
	})
	return out, err
}

func (r *Coupons) CountRedemptions(ctx context.Context, code, customerID string) (int, error) {
	n := 0
	err := r.s.do(ctx, func(st *state) error {
		for _, rd := range st.redemptions {
			if rd.code == code && rd.customerID == customerID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *Coupons) Redeem(ctx context.Context, code, customerID, orderID string) error {
	return r.s.do(ctx, func(st *state) error {
		rule, ok := st.coupons[code]
		if !ok {
			return coupon.ErrInvalidCoupon
		}
		rule.UsageCount++
		st.coupons[code] = rule
		st.redemptions = append(st.redemptions, redemption{code: code, customerID: customerID, orderID: orderID})
		return nil
	})
}

func (r *Coupons) Upsert(ctx context.Context, rules []coupon.Rule) (int, error) {
	err := r.s.do(ctx, func(st *state) error {
		for _, rule := range rules {
			rule.Code = coupon.Normalize(rule.Code)
			if prev, ok := st.coupons[rule.Code]; ok {
				rule.UsageCount = prev.UsageCount
			}
			st.coupons[rule.Code] = rule
		}
		return nil
	})
	return len(rules), err
}
