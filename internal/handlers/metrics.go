package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-catalog/internal/metrics"
)

// MetricsHandler returns the Prometheus metrics handler. The catalog gauges
// are refreshed before every scrape.
func (h *Handlers) MetricsHandler() http.Handler {
	next := promhttp.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordStats(h.finder.GetStats())
		next.ServeHTTP(w, r)
	})
}
