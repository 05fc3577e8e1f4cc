package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rental-ledger/internal/domain/auth"
	"github.com/xenking/rental-ledger/internal/domain/coupon"
	"github.com/xenking/rental-ledger/internal/domain/inventory"
	"github.com/xenking/rental-ledger/internal/domain/invoice"
	"github.com/xenking/rental-ledger/internal/domain/order"
	"github.com/xenking/rental-ledger/internal/domain/party"
	"github.com/xenking/rental-ledger/internal/domain/payment"
	"github.com/xenking/rental-ledger/internal/domain/period"
	"github.com/xenking/rental-ledger/internal/domain/pricing"
	"github.com/xenking/rental-ledger/internal/domain/product"
	"github.com/xenking/rental-ledger/internal/domain/report"
	"github.com/xenking/rental-ledger/pkg/apierr"
)

type dataBody struct {
	Data any `json:"data"`
}

type listBody struct {
	Data    any `json:"data"`
	Total   int `json:"total"`
	Page    int `json:"page,omitempty"`
	PerPage int `json:"per_page,omitempty"`
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    apierr.Code `json:"code"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataBody{Data: data})
}

// writeError renders err as the API error envelope. Errors that do not map
// to a client-facing code are logged and reported as INTERNAL_ERROR without
// details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := toAPIError(err)
	meta := apierr.MetadataFor(e.Code())

	payload := errorPayload{Code: e.Code(), Message: e.Message()}
	if meta.DetailsAllowed {
		payload.Details = e.Details()
	}
	if e.Code() == apierr.CodeInternal {
		payload.Message = meta.PublicMessage
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, meta.HTTPStatus, errorBody{Error: payload})
}

// toAPIError maps domain errors onto API codes.
func toAPIError(err error) *apierr.Error {
	if e := apierr.As(err); e != nil {
		return e
	}

	var (
		stockErr   *inventory.InsufficientStockError
		staleErr   *order.StaleAvailabilityError
		transErr   *order.IllegalTransitionError
		addrErr    *order.InvalidAddressError
		stateErr   *invoice.StateError
		overErr    *invoice.OverpaymentError
		minErr     *coupon.MinOrderValueError
		gatewayErr = errors.Is(err, payment.ErrGatewayUnavailable)
	)
	switch {
	case errors.As(err, &stockErr):
		return apierr.Wrap(apierr.CodeInsufficientStock, err, stockErr.Error()).WithDetails(map[string]any{
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.As(err, &staleErr):
		return apierr.Wrap(apierr.CodeStaleAvailability, err, staleErr.Error()).WithDetails(map[string]any{
			"order_id": staleErr.OrderID,
			"items":    staleErr.Items,
		})
	case errors.As(err, &transErr):
		return apierr.Wrap(apierr.CodeIllegalState, err, transErr.Error()).WithDetails(map[string]any{
			"from": transErr.From,
			"to":   transErr.To,
		})
	case errors.As(err, &stateErr):
		return apierr.Wrap(apierr.CodeIllegalState, err, stateErr.Error()).WithDetails(map[string]any{
			"status": stateErr.Status,
			"action": stateErr.Action,
		})
	case errors.As(err, &addrErr):
		return apierr.Wrap(apierr.CodeValidation, err, addrErr.Error()).WithDetails(map[string]any{
			"fields": addrErr.Fields,
		})
	case errors.As(err, &overErr):
		return apierr.Wrap(apierr.CodeOverpayment, err, overErr.Error()).WithDetails(map[string]any{
			"amount":     overErr.Amount,
			"amount_due": overErr.AmountDue,
		})
	case errors.As(err, &minErr):
		return apierr.Wrap(apierr.CodeCouponRejected, err, minErr.Error()).WithDetails(map[string]any{
			"code":            minErr.Code,
			"min_order_value": minErr.Minimum,
		})
	case coupon.IsRejection(err):
		return apierr.Wrap(apierr.CodeCouponRejected, err, rootMessage(err))
	case gatewayErr:
		return apierr.Wrap(apierr.CodeDependency, err, "payment gateway unavailable")
	case errors.Is(err, auth.ErrUnauthorized):
		return apierr.Wrap(apierr.CodeUnauthorized, err, "invalid or missing API key")
	case errors.Is(err, payment.ErrVerificationFailed):
		return apierr.Wrap(apierr.CodePaymentFailed, err, "payment verification failed")
	case errors.Is(err, payment.ErrVerificationInProgress),
		errors.Is(err, inventory.ErrReservationCommitted),
		errors.Is(err, inventory.ErrReservationInactive),
		errors.Is(err, order.ErrNotEditable):
		return apierr.Wrap(apierr.CodeIllegalState, err, rootMessage(err))
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, invoice.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, party.ErrNotFound),
		errors.Is(err, inventory.ErrNotFound):
		return apierr.Wrap(apierr.CodeNotFound, err, rootMessage(err))
	case errors.Is(err, period.ErrInvalidRange),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrNoDailyRate),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, product.ErrNegativeStock),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrTermsNotAccepted),
		errors.Is(err, invoice.ErrInvalidAmount),
		errors.Is(err, payment.ErrInvalidMethod),
		errors.Is(err, report.ErrInvalidWindow):
		return apierr.Wrap(apierr.CodeValidation, err, rootMessage(err))
	}
	return apierr.Wrap(apierr.CodeInternal, err, "internal server error")
}

// rootMessage returns the innermost error text so wrapping context stays in
// the logs only.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
