package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rental-ledger/internal/export"
)

func (h *Handler) exportOrders(w http.ResponseWriter, r *http.Request) {
	f, err := orderFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	scope := orderScope(principal(r))
	f.PerPage = h.pageSize

	h.streamCSV(w, r, "orders", func(out io.Writer) error {
		cw := export.NewOrderWriter(out)
		for page := 1; ; page++ {
			f.Page = page
			orders, total, err := h.orders.List(r.Context(), scope, f)
			if err != nil {
				return errors.Wrapf(err, "list orders page %d", page)
			}
			if err := cw.Orders(orders); err != nil {
				return err
			}
			if len(orders) < f.PerPage || page*f.PerPage >= total {
				break
			}
		}
		return cw.Flush()
	})
}

func (h *Handler) exportInvoices(w http.ResponseWriter, r *http.Request) {
	f, err := invoiceFilter(r, principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.PerPage = h.pageSize

	h.streamCSV(w, r, "invoices", func(out io.Writer) error {
		cw := export.NewInvoiceWriter(out)
		for page := 1; ; page++ {
			f.Page = page
			invoices, total, err := h.invoices.List(r.Context(), f)
			if err != nil {
				return errors.Wrapf(err, "list invoices page %d", page)
			}
			if err := cw.Invoices(invoices); err != nil {
				return err
			}
			if len(invoices) < f.PerPage || page*f.PerPage >= total {
				break
			}
		}
		return cw.Flush()
	})
}

// streamCSV writes the export produced by fill, gzip-compressed when the
// client asks for it with ?gzip=true or Accept-Encoding. Once the first byte
// is out, failures can only be logged.
func (h *Handler) streamCSV(w http.ResponseWriter, r *http.Request, name string, fill func(io.Writer) error) {
	filename := fmt.Sprintf("%s-%s.csv", name, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	var out io.Writer = w
	var gz io.WriteCloser
	if boolParam(r, "gzip") || strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gz = export.Gzip(w)
		out = gz
	}
	w.WriteHeader(http.StatusOK)

	err := fill(out)
	if gz != nil {
		if cerr := gz.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		zctx.From(r.Context()).Error("Export failed", zap.String("export", name), zap.Error(err))
	}
}
