package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/invoice-analytics/httpx"
	"github.com/diewo77/invoice-analytics/internal/export"
	applog "github.com/diewo77/invoice-analytics/internal/log"
	"github.com/diewo77/invoice-analytics/validation"
)

const (
	formatCSV  = "csv"
	formatXLSX = "xlsx"

	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// exportFormat reads ?format=, defaulting to csv.
func exportFormat(r *http.Request) (string, bool) {
	f := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if f == "" {
		f = formatCSV
	}
	v := validation.Violations{}
	validation.OneOf("format", f, []string{formatCSV, formatXLSX}, v)
	return f, v.Empty()
}

// writeTable renders rows as <name>_<YYYY-MM-DD>.<format>. The file is built
// in memory so a failure can still be reported as JSON.
func writeTable[R ~map[string]any](w http.ResponseWriter, r *http.Request, now time.Time, name, format string, columns []string, rows []R) {
	var buf bytes.Buffer
	var err error
	contentType := contentTypeCSV
	switch format {
	case formatXLSX:
		contentType = contentTypeXLSX
		err = export.WriteXLSX(&buf, name, columns, rows)
	default:
		err = export.WriteCSV(&buf, columns, rows)
	}
	if errors.Is(err, export.ErrNoRows) {
		httpx.JSONError(w, http.StatusNotFound, "No rows to export", nil)
		return
	}
	if err != nil {
		fields := applog.NewFields().WithOperation(applog.OpExport).WithError(err)
		applog.FromContext(r.Context()).Error("export failed", append(fields.ToSlice(), "format", format)...)
		httpx.JSONError(w, http.StatusInternalServerError, "Failed to export", nil)
		return
	}

	httpx.Attachment(w, name+"_"+now.Format(time.DateOnly)+"."+format, contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		applog.FromContext(r.Context()).Debug("export write interrupted", applog.FieldError, err)
	}
}
