package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler exposes the default Prometheus registry at GET /metrics.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}
