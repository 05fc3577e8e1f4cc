package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rental-ledger/internal/domain/period"
	"github.com/xenking/rental-ledger/pkg/apierr"
)

func (h *Handler) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, h.settings)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody{Data: products, Total: len(products)})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

type stockRequest struct {
	QuantityOnHand *int `json:"quantity_on_hand" validate:"required,min=0"`
}

func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	p, err := h.products.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ownsProduct(principal(r), p.VendorID) {
		writeError(w, r, apierr.New(apierr.CodeForbidden, "product belongs to another vendor"))
		return
	}
	if err := h.products.SetQuantityOnHand(ctx, p.ID, *req.QuantityOnHand); err != nil {
		writeError(w, r, err)
		return
	}
	zctx.From(ctx).Info("Stock adjusted",
		zap.String("product_id", p.ID),
		zap.Int("from", p.QuantityOnHand),
		zap.Int("to", *req.QuantityOnHand),
	)
	p.QuantityOnHand = *req.QuantityOnHand
	writeData(w, http.StatusOK, p)
}

func (h *Handler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	q := queryErrors{}
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		q["product_id"] = "is required"
	}
	start := q.timeParam(r, "start", true)
	end := q.timeParam(r, "end", true)
	qty := q.intParam(r, "quantity", 1, 1)
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}
	rng, err := period.New(*start, *end)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a, err := h.availability.Check(r.Context(), productID, rng, qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, a)
}
