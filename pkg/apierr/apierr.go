// Package apierr defines the error codes exposed at the HTTP boundary and the
// transport metadata (status, public message, retryability) attached to each.
package apierr

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// Code is a stable, machine-readable error identifier returned to clients.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeStaleAvailability Code = "STALE_AVAILABILITY"
	CodeIllegalState      Code = "ILLEGAL_STATE_TRANSITION"
	CodeCouponRejected    Code = "COUPON_REJECTED"
	CodePaymentFailed     Code = "PAYMENT_VERIFICATION_FAILED"
	CodeOverpayment       Code = "OVERPAYMENT"
	CodeRateLimit         Code = "RATE_LIMIT_EXCEEDED"
	CodeDependency        Code = "DEPENDENCY_ERROR"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// Metadata describes how a Code is rendered over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
	CodeUnauthorized:      {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
	CodeForbidden:         {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	CodeNotFound:          {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	CodeInsufficientStock: {HTTPStatus: http.StatusConflict, PublicMessage: "insufficient stock", DetailsAllowed: true},
	CodeStaleAvailability: {HTTPStatus: http.StatusConflict, PublicMessage: "availability changed", DetailsAllowed: true},
	CodeIllegalState:      {HTTPStatus: http.StatusConflict, PublicMessage: "state transition disallowed", DetailsAllowed: true},
	CodeCouponRejected:    {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "coupon rejected", DetailsAllowed: true},
	CodePaymentFailed:     {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "payment verification failed"},
	CodeOverpayment:       {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "payment exceeds amount due", DetailsAllowed: true},
	CodeRateLimit:         {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
	CodeDependency:        {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable"},
	CodeInternal:          {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
}

// MetadataFor returns the metadata for code, falling back to CodeInternal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is an error carrying a Code, a client-facing message and optional
// structured details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

// New creates an Error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap creates an Error that wraps err.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// WithDetails attaches details rendered when the code allows it.
func (e *Error) WithDetails(details any) *Error {
	e.details = details
	return e
}

func (e *Error) Code() Code      { return e.code }
func (e *Error) Message() string { return e.message }
func (e *Error) Details() any    { return e.details }

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var target *Error
	if errors.As(err, &target) {
		return target
	}
	return nil
}
