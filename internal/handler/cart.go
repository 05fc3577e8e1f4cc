package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/rental-ledger/internal/domain/order"
	"github.com/xenking/rental-ledger/internal/domain/period"
)

func (h *Handler) listCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := h.orders.Carts(r.Context(), principal(r).PartyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody{Data: carts, Total: len(carts)})
}

type addToCartRequest struct {
	ProductID        string    `json:"product_id" validate:"required,max=64"`
	Quantity         int       `json:"quantity" validate:"required,min=1,max=1000"`
	Start            time.Time `json:"start" validate:"required"`
	End              time.Time `json:"end" validate:"required,gtfield=Start"`
	RentalPeriodType string    `json:"rental_period_type" validate:"omitempty,oneof=hourly daily weekly monthly custom"`
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rng, err := period.New(req.Start, req.End)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.AddToCart(r.Context(), order.AddItemRequest{
		CustomerID:       principal(r).PartyID,
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		RentalPeriod:     rng,
		RentalPeriodType: req.RentalPeriodType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, o)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RemoveItem(r.Context(), principal(r).PartyID, chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

type couponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.ApplyCoupon(r.Context(), principal(r).PartyID, chi.URLParam(r, "orderID"), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}

func (h *Handler) clearCoupon(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.ClearCoupon(r.Context(), principal(r).PartyID, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, o)
}
