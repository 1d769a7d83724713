package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerHTTP mounts the operational endpoints.
func (a *App) registerHTTP(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Readiness covers the configured store only; the memory store is
	// always ready.
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.pool != nil {
			if err := PingDB(r.Context(), a.pool); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if a.rdb != nil {
			if err := PingRedis(r.Context(), a.rdb); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
}
