// Package handlers exposes the analytics and chat services over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/diewo77/invoice-analytics/httpx"
	applog "github.com/diewo77/invoice-analytics/internal/log"
	"github.com/diewo77/invoice-analytics/internal/services"
	"github.com/diewo77/invoice-analytics/validation"
)

type AnalyticsHandler struct {
	svc *services.AnalyticsService
	now func() time.Time
}

func NewAnalyticsHandler(svc *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, now: time.Now}
}

func (h *AnalyticsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stats", fetch(h.svc.Stats, "Failed to fetch statistics"))
	mux.HandleFunc("GET /api/invoice-trends", fetch(h.svc.InvoiceTrends, "Failed to fetch invoice trends"))
	mux.HandleFunc("GET /api/vendors/top10", fetch(h.svc.TopVendors, "Failed to fetch top vendors"))
	mux.HandleFunc("GET /api/category-spend", fetch(h.svc.CategorySpend, "Failed to fetch category spend"))
	mux.HandleFunc("GET /api/cash-outflow", fetch(h.svc.CashOutflow, "Failed to fetch cash outflow"))
	mux.HandleFunc("GET /api/invoices", h.listInvoices)
	mux.HandleFunc("GET /api/invoices/export", h.exportInvoices)
}

// fetch adapts a read-only aggregate to a JSON endpoint.
func fetch[T any](load func(context.Context) (T, error), failure string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := load(r.Context())
		if err != nil {
			applog.FromContext(r.Context()).Error(failure, applog.FieldError, err)
			httpx.JSONError(w, http.StatusInternalServerError, failure, nil)
			return
		}
		httpx.JSON(w, http.StatusOK, v)
	}
}

// invoiceFilter parses search, status, limit and offset.
func invoiceFilter(r *http.Request) (services.InvoiceFilter, validation.Violations) {
	q := r.URL.Query()
	v := validation.Violations{}
	f := services.InvoiceFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Limit:  validation.OptionalInt("limit", q.Get("limit"), services.DefaultPageLimit, v),
		Offset: validation.OptionalInt("offset", q.Get("offset"), 0, v),
	}
	// An explicit limit must be in range; only an absent one takes the default.
	if _, bad := v["limit"]; !bad && q.Get("limit") != "" {
		validation.RangeInt("limit", f.Limit, 1, services.MaxPageLimit, v)
	}
	return f, v
}

func (h *AnalyticsHandler) listInvoices(w http.ResponseWriter, r *http.Request) {
	f, v := invoiceFilter(r)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "Invalid pagination", v)
		return
	}
	page, err := h.svc.ListInvoices(r.Context(), f)
	var fe *services.FilterError
	switch {
	case errors.As(err, &fe):
		httpx.JSONError(w, http.StatusBadRequest, "Invalid pagination", fe.Violations)
	case err != nil:
		applog.FromContext(r.Context()).Error("list invoices failed", applog.FieldError, err)
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to fetch invoices", nil)
	default:
		httpx.JSON(w, http.StatusOK, page)
	}
}

func (h *AnalyticsHandler) exportInvoices(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "Invalid format", map[string]string{"format": "not_allowed"})
		return
	}
	f, _ := invoiceFilter(r)
	rows, err := h.svc.ExportInvoices(r.Context(), f)
	if err != nil {
		applog.FromContext(r.Context()).Error("export invoices failed", applog.FieldError, err)
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to fetch invoices", nil)
		return
	}
	records := make([]map[string]any, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	writeTable(w, r, h.now(), "invoices", format, services.InvoiceColumns, records)
}
