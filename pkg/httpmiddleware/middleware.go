// Package httpmiddleware holds the net/http middlewares shared by the API
// server.
package httpmiddleware

import (
	"encoding/json"
	"net/http"

	"github.com/xenking/rental-ledger/pkg/apierr"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares so that the first one is the outermost.
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type errorBody struct {
	Error struct {
		Code    apierr.Code `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

// writeError renders the API error envelope for failures raised before a
// request reaches a handler.
func writeError(w http.ResponseWriter, code apierr.Code) {
	meta := apierr.MetadataFor(code)
	var body errorBody
	body.Error.Code = code
	body.Error.Message = meta.PublicMessage

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(meta.HTTPStatus)
	_ = json.NewEncoder(w).Encode(body)
}
