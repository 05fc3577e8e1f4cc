package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/rental-ledger/internal/domain/order"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	scope := orderScope(principal(r))
	if number := r.URL.Query().Get("number"); number != "" {
		o, err := h.orders.GetByNumber(r.Context(), scope, number)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listBody{Data: []*order.Order{o}, Total: 1})
		return
	}

	f, err := orderFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, total, err := h.orders.List(r.Context(), scope, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, listBody{Data: orders, Total: total, Page: f.Page, PerPage: f.PerPage})
}

// orderFilter reads status, created_after, created_before, ends_after,
// ends_before, customer_id, vendor_id, page and per_page. Party filters are
// overridden by the caller's scope.
func orderFilter(r *http.Request) (order.Filter, error) {
	q := queryErrors{}
	f := order.Filter{
		CustomerID:    r.URL.Query().Get("customer_id"),
		VendorID:      r.URL.Query().Get("vendor_id"),
		CreatedAfter:  q.timeParam(r, "created_after", false),
		CreatedBefore: q.timeParam(r, "created_before", false),
		EndsAfter:     q.timeParam(r, "ends_after", false),
		EndsBefore:    q.timeParam(r, "ends_before", false),
		Page:          q.intParam(r, "page", 1, 1),
		PerPage:       q.intParam(r, "per_page", defaultPerPage, 1),
	}
	if f.PerPage > maxPerPage {
		q["per_page"] = "must be at most 100"
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, err := order.ParseStatus(strings.TrimSpace(s))
			if err != nil {
				q["status"] = err.Error()
				break
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	return f, q.err()
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), orderScope(principal(r)), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Quote(r.Context(), orderScope(principal(r)), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

type confirmRequest struct {
	BillingAddress  string `json:"billing_address" validate:"max=512"`
	DeliveryAddress string `json:"delivery_address" validate:"max=512"`
	DeliveryMethod  string `json:"delivery_method" validate:"omitempty,oneof=pickup standard"`
	TermsAccepted   bool   `json:"terms_accepted"`
	CustomerNotes   string `json:"customer_notes" validate:"max=2000"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.orders.Confirm(r.Context(), order.ConfirmRequest{
		OrderID:         chi.URLParam(r, "id"),
		CustomerID:      principal(r).PartyID,
		BillingAddress:  req.BillingAddress,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryMethod:  order.DeliveryMethod(req.DeliveryMethod),
		TermsAccepted:   req.TermsAccepted,
		CustomerNotes:   req.CustomerNotes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if c.Replayed {
		status = http.StatusOK
	}
	writeData(w, status, c)
}

type pickupRequest struct {
	PickedUpBy string `json:"picked_up_by" validate:"required,max=128"`
	Notes      string `json:"notes" validate:"max=2000"`
}

func (h *Handler) pickup(w http.ResponseWriter, r *http.Request) {
	var req pickupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.MarkPickup(r.Context(), order.PickupRequest{
		Scope:      orderScope(principal(r)),
		OrderID:    chi.URLParam(r, "id"),
		PickedUpBy: req.PickedUpBy,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

type returnRequest struct {
	ReturnedBy        string `json:"returned_by" validate:"required,max=128"`
	Condition         string `json:"condition" validate:"omitempty,oneof=good fair damaged"`
	Notes             string `json:"notes" validate:"max=2000"`
	DamageReported    bool   `json:"damage_reported"`
	DamageDescription string `json:"damage_description" validate:"required_if=DamageReported true,max=2000"`
}

func (h *Handler) markReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.MarkReturn(r.Context(), order.ReturnRequest{
		Scope:             orderScope(principal(r)),
		OrderID:           chi.URLParam(r, "id"),
		ReturnedBy:        req.ReturnedBy,
		Condition:         req.Condition,
		Notes:             req.Notes,
		DamageReported:    req.DamageReported,
		DamageDescription: req.DamageDescription,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Cancel(r.Context(), order.CancelRequest{
		Scope:   orderScope(principal(r)),
		OrderID: chi.URLParam(r, "id"),
		Reason:  req.Reason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

func (h *Handler) pendingPickups(w http.ResponseWriter, r *http.Request) {
	h.writeQueue(w, r)(h.orders.PendingPickups(r.Context(), orderScope(principal(r))))
}

func (h *Handler) upcomingReturns(w http.ResponseWriter, r *http.Request) {
	h.writeQueue(w, r)(h.orders.UpcomingReturns(r.Context(), orderScope(principal(r)), h.returnWindow))
}

func (h *Handler) overdue(w http.ResponseWriter, r *http.Request) {
	h.writeQueue(w, r)(h.orders.Overdue(r.Context(), orderScope(principal(r))))
}

func (h *Handler) writeQueue(w http.ResponseWriter, r *http.Request) func([]order.Order, error) {
	return func(orders []order.Order, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		if orders == nil {
			orders = []order.Order{}
		}
		writeJSON(w, http.StatusOK, listBody{Data: orders, Total: len(orders)})
	}
}

func (h *Handler) issueInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.orders.IssueInvoice(r.Context(), orderScope(principal(r)), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, inv)
}
