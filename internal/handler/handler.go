// Package handler exposes the rental ledger over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/rental-ledger/internal/domain/auth"
	"github.com/xenking/rental-ledger/internal/domain/inventory"
	"github.com/xenking/rental-ledger/internal/domain/invoice"
	"github.com/xenking/rental-ledger/internal/domain/order"
	"github.com/xenking/rental-ledger/internal/domain/party"
	"github.com/xenking/rental-ledger/internal/domain/payment"
	"github.com/xenking/rental-ledger/internal/domain/period"
	"github.com/xenking/rental-ledger/internal/domain/product"
	"github.com/xenking/rental-ledger/internal/domain/report"
	"github.com/xenking/rental-ledger/pkg/apierr"
	"github.com/xenking/rental-ledger/pkg/httpmiddleware"
)

// Authenticator resolves the X-API-Key header into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (auth.Principal, error)
}

// Availability answers stock questions for the availability endpoint.
type Availability interface {
	Check(ctx context.Context, productID string, rng period.Range, qty int) (inventory.Availability, error)
}

// Settings is the public company configuration served at /api/settings.
type Settings struct {
	CompanyName       string          `json:"company_name"`
	GSTIN             string          `json:"gstin,omitempty"`
	Currency          string          `json:"currency"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	DeliveryCharge    decimal.Decimal `json:"delivery_charge"`
	LateFeePolicy     string          `json:"late_fee_policy"`
	LateFeePerDay     decimal.Decimal `json:"late_fee_per_day"`
	LateFeePercentage decimal.Decimal `json:"late_fee_percentage"`
	InvoiceDueDays    int             `json:"invoice_due_days"`
	HoldTTLSeconds    int             `json:"hold_ttl_seconds"`
}

// Deps are the collaborators the routes delegate to.
type Deps struct {
	Auth         Authenticator
	Products     product.Repository
	Availability Availability
	Orders       *order.Service
	Invoices     *invoice.Generator
	Payments     *payment.Service
	Reports      *report.Service
	Settings     Settings
	// ReturnWindow bounds the upcoming-returns queue. Zero means 48 hours.
	ReturnWindow time.Duration
	// ExportPageSize is the page size used to stream CSV exports.
	ExportPageSize int
}

// Handler serves the /api routes.
type Handler struct {
	auth         Authenticator
	products     product.Repository
	availability Availability
	orders       *order.Service
	invoices     *invoice.Generator
	payments     *payment.Service
	reports      *report.Service
	settings     Settings
	returnWindow time.Duration
	pageSize     int
}

// New creates a Handler.
func New(d Deps) *Handler {
	h := &Handler{
		auth:         d.Auth,
		products:     d.Products,
		availability: d.Availability,
		orders:       d.Orders,
		invoices:     d.Invoices,
		payments:     d.Payments,
		reports:      d.Reports,
		settings:     d.Settings,
		returnWindow: d.ReturnWindow,
		pageSize:     d.ExportPageSize,
	}
	if h.returnWindow <= 0 {
		h.returnWindow = 48 * time.Hour
	}
	if h.pageSize <= 0 {
		h.pageSize = 500
	}
	return h
}

// Routes returns the /api router. Every route requires an API key.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests())
	r.Use(h.authenticate)

	staff := requireRole(party.RoleVendor, party.RoleAdmin)
	customer := requireRole(party.RoleCustomer)
	admin := requireRole(party.RoleAdmin)

	r.Get("/settings", h.getSettings)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)
		r.With(staff).Put("/{id}/stock", h.setStock)
	})
	r.Get("/availability", h.checkAvailability)

	r.Route("/cart", func(r chi.Router) {
		r.Use(customer)
		r.Get("/", h.listCarts)
		r.Post("/add", h.addToCart)
		r.Delete("/items/{itemID}", h.removeItem)
		r.Post("/{orderID}/coupon", h.applyCoupon)
		r.Delete("/{orderID}/coupon", h.clearCoupon)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.With(staff).Get("/queues/pending-pickups", h.pendingPickups)
		r.With(staff).Get("/queues/upcoming-returns", h.upcomingReturns)
		r.With(staff).Get("/queues/overdue", h.overdue)
		r.Get("/{id}", h.getOrder)
		r.With(customer).Post("/{id}/quote", h.quote)
		r.With(customer).Post("/{id}/confirm", h.confirm)
		r.With(staff).Post("/{id}/pickup", h.pickup)
		r.With(staff).Post("/{id}/return", h.markReturn)
		r.Post("/{id}/cancel", h.cancel)
		r.With(staff).Post("/{id}/invoice", h.issueInvoice)
	})

	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Get("/{id}", h.getInvoice)
		r.With(staff).Post("/{id}/post", h.postInvoice)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.listPayments)
		r.With(customer).Post("/gateway/order", h.createGatewayOrder)
		r.With(customer).Post("/gateway/verify", h.verifyPayment)
		r.With(staff).Post("/manual", h.recordManualPayment)
	})

	r.Route("/dashboard", func(r chi.Router) {
		r.Use(staff)
		r.With(admin).Get("/admin", h.adminDashboard)
		r.Get("/vendor", h.vendorDashboard)
		r.Get("/revenue-chart", h.revenueChart)
		r.Get("/top-products", h.topProducts)
		r.With(admin).Get("/vendor-performance", h.vendorPerformance)
	})

	r.Route("/export", func(r chi.Router) {
		r.Use(staff)
		r.Get("/orders", h.exportOrders)
		r.Get("/invoices", h.exportInvoices)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apierr.New(apierr.CodeNotFound, "route not found"))
	})
	return r
}
