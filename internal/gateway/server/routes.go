package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firedesk/internal/gateway/handler"
	"firedesk/internal/gateway/middleware"
)

func NewMux(h *handler.Service, registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/firebreak/run", h.HandleRunFirebreak)
	mux.HandleFunc("/api/firebreak/runs", h.HandleStartFirebreak)
	mux.HandleFunc("/api/firebreak/watch/", h.HandleWatchSSE)
	mux.HandleFunc("/api/firebreak/ws/", h.HandleWatchWS)
	mux.HandleFunc("/healthz", h.HandleHealthz)

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return middleware.CORS(mux)
}
