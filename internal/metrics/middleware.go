package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "momentum",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "momentum",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
}

// Middleware observes every request under its chi route pattern, so
// parameterized paths collapse to one label value per route instead of one
// per document id.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			labels := prometheus.Labels{
				"method": r.Method,
				"path":   normalizePath(chi.RouteContext(r.Context()).RoutePattern()),
				"status": strconv.Itoa(ww.Status()),
			}
			httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
			httpRequestsTotal.With(labels).Inc()
		})
	}
}

// normalizePath keeps an unmatched route from producing an empty label.
func normalizePath(path string) string {
	if path == "" {
		return "unknown"
	}
	return path
}
