package handler

import (
	"net/http"

	"github.com/xenking/rental-ledger/internal/domain/party"
	"github.com/xenking/rental-ledger/internal/domain/report"
)

const (
	defaultChartDays = 30
	minChartDays     = 7
	defaultRankLimit = 10
	maxRankLimit     = 50
)

func (h *Handler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.reports.AdminDashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

// vendorDashboard serves the caller's own figures. Admins get the
// platform-wide dashboard.
func (h *Handler) vendorDashboard(w http.ResponseWriter, r *http.Request) {
	var (
		d   *report.Dashboard
		err error
	)
	if p := principal(r); p.Role == party.RoleVendor {
		d, err = h.reports.VendorDashboard(r.Context(), p.PartyID)
	} else {
		d, err = h.reports.AdminDashboard(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

func (h *Handler) revenueChart(w http.ResponseWriter, r *http.Request) {
	q := queryErrors{}
	days := q.intParam(r, "days", defaultChartDays, minChartDays)
	if days > report.MaxChartDays {
		q["days"] = "must be at most 365"
	}
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}
	points, err := h.reports.RevenueChart(r.Context(), reportVendor(r), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, points)
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := rankLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	top, err := h.reports.TopProducts(r.Context(), reportVendor(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, top)
}

func (h *Handler) vendorPerformance(w http.ResponseWriter, r *http.Request) {
	limit, err := rankLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.reports.VendorPerformance(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

// reportVendor scopes vendors to their own figures; admins see all vendors.
func reportVendor(r *http.Request) string {
	if p := principal(r); p.Role == party.RoleVendor {
		return p.PartyID
	}
	return ""
}

func rankLimit(r *http.Request) (int, error) {
	q := queryErrors{}
	limit := q.intParam(r, "limit", defaultRankLimit, 1)
	if limit > maxRankLimit {
		q["limit"] = "must be at most 50"
	}
	return limit, q.err()
}
