package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rental-ledger/internal/domain/auth"
	"github.com/xenking/rental-ledger/internal/domain/invoice"
	"github.com/xenking/rental-ledger/internal/domain/order"
	"github.com/xenking/rental-ledger/internal/domain/party"
	"github.com/xenking/rental-ledger/pkg/apierr"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "X-API-Key"

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.auth.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
		if err != nil {
			writeError(w, r, auth.ErrUnauthorized)
			return
		}
		ctx := auth.WithPrincipal(r.Context(), p)
		ctx = zctx.With(ctx, zap.String("party_id", p.PartyID), zap.String("role", string(p.Role)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireRole(roles ...party.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok || !p.Is(roles...) {
				writeError(w, r, apierr.New(apierr.CodeForbidden, "role not allowed for this operation"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

// orderScope limits customers to their own orders and vendors to orders of
// their products. Admins see everything.
func orderScope(p auth.Principal) order.Scope {
	switch p.Role {
	case party.RoleCustomer:
		return order.Scope{CustomerID: p.PartyID}
	case party.RoleVendor:
		return order.Scope{VendorID: p.PartyID}
	default:
		return order.Scope{}
	}
}

func invoiceVisible(p auth.Principal, inv *invoice.Invoice) bool {
	switch p.Role {
	case party.RoleCustomer:
		return inv.Customer.ID == p.PartyID
	case party.RoleVendor:
		return inv.Vendor.ID == p.PartyID
	case party.RoleAdmin:
		return true
	default:
		return false
	}
}

// ownsProduct reports whether p may change stock of a product owned by
// vendorID.
func ownsProduct(p auth.Principal, vendorID string) bool {
	return p.Role == party.RoleAdmin || (p.Role == party.RoleVendor && p.PartyID == vendorID)
}
