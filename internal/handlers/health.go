package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/diewo77/invoice-analytics/httpx"
	"github.com/diewo77/invoice-analytics/internal/db"
)

// RegisterHealth adds /health (process up) and /healthz (store reachable).
func RegisterHealth(mux *http.ServeMux, gdb *gorm.DB) {
	//revive:disable:unused-parameter simple handlers intentionally ignore *http.Request
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	//revive:enable:unused-parameter
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), gdb); err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
