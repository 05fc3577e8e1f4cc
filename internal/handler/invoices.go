package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/rental-ledger/internal/domain/auth"
	"github.com/xenking/rental-ledger/internal/domain/invoice"
	"github.com/xenking/rental-ledger/internal/domain/party"
)

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	f, err := invoiceFilter(r, principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	invoices, total, err := h.invoices.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if invoices == nil {
		invoices = []invoice.Invoice{}
	}
	writeJSON(w, http.StatusOK, listBody{Data: invoices, Total: total, Page: f.Page, PerPage: f.PerPage})
}

func invoiceFilter(r *http.Request, p auth.Principal) (invoice.Filter, error) {
	q := queryErrors{}
	f := invoice.Filter{
		CustomerID: r.URL.Query().Get("customer_id"),
		VendorID:   r.URL.Query().Get("vendor_id"),
		Page:       q.intParam(r, "page", 1, 1),
		PerPage:    q.intParam(r, "per_page", defaultPerPage, 1),
	}
	if f.PerPage > maxPerPage {
		q["per_page"] = "must be at most 100"
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, invoice.Status(strings.TrimSpace(s)))
		}
	}
	switch p.Role {
	case party.RoleCustomer:
		f.CustomerID = p.PartyID
	case party.RoleVendor:
		f.VendorID = p.PartyID
	}
	return f, q.err()
}

// visibleInvoice loads an invoice and hides it from callers outside its
// customer and vendor.
func (h *Handler) visibleInvoice(r *http.Request, id string) (*invoice.Invoice, error) {
	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !invoiceVisible(principal(r), inv) {
		return nil, invoice.ErrNotFound
	}
	return inv, nil
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.visibleInvoice(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, inv)
}

func (h *Handler) postInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.visibleInvoice(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err = h.invoices.Post(r.Context(), inv.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, inv)
}
