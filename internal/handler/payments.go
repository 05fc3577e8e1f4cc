package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/rental-ledger/internal/domain/party"
	"github.com/xenking/rental-ledger/internal/domain/payment"
	"github.com/xenking/rental-ledger/pkg/apierr"
)

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	f := payment.Filter{InvoiceID: r.URL.Query().Get("invoice_id")}
	switch p.Role {
	case party.RoleCustomer:
		f.CustomerID = p.PartyID
	case party.RoleVendor:
		// Vendors list payments per invoice so visibility follows the invoice.
		if f.InvoiceID == "" {
			writeError(w, r, apierr.New(apierr.CodeValidation, "invalid query parameters").
				WithDetails(map[string]string{"invoice_id": "is required"}))
			return
		}
		if _, err := h.visibleInvoice(r, f.InvoiceID); err != nil {
			writeError(w, r, err)
			return
		}
	}

	payments, err := h.payments.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if payments == nil {
		payments = []payment.Payment{}
	}
	writeJSON(w, http.StatusOK, listBody{Data: payments, Total: len(payments)})
}

type gatewayOrderRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required,max=64"`
	// Amount is optional; zero pays the full amount due.
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) createGatewayOrder(w http.ResponseWriter, r *http.Request) {
	var req gatewayOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount.IsNegative() {
		writeError(w, r, apierr.New(apierr.CodeValidation, "validation failed").
			WithDetails(map[string]string{"amount": "must not be negative"}))
		return
	}
	c, err := h.payments.CreateGatewayOrder(r.Context(), payment.CheckoutRequest{
		InvoiceID:  req.InvoiceID,
		CustomerID: principal(r).PartyID,
		Amount:     req.Amount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, c)
}

type verifyRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" validate:"required,max=128"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required,max=128"`
	Signature        string `json:"signature" validate:"required,hexadecimal,max=128"`
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.payments.Verify(r.Context(), payment.VerifyRequest{
		CustomerID:       principal(r).PartyID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

type manualPaymentRequest struct {
	InvoiceID string          `json:"invoice_id" validate:"required,max=64"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"required,oneof=cash bank_transfer"`
	Reference string          `json:"reference" validate:"max=128"`
}

func (h *Handler) recordManualPayment(w http.ResponseWriter, r *http.Request) {
	var req manualPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p := principal(r)
	vendorID := ""
	if p.Role == party.RoleVendor {
		vendorID = p.PartyID
	}
	out, err := h.payments.RecordManual(r.Context(), payment.ManualRequest{
		InvoiceID: req.InvoiceID,
		VendorID:  vendorID,
		Amount:    req.Amount,
		Method:    payment.Method(req.Method),
		Reference: req.Reference,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, out)
}
