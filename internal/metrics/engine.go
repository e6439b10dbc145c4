package metrics

import "github.com/prometheus/client_golang/prometheus"

// Engine Prometheus metrics.
var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "momentum",
			Name:      "operations_total",
			Help:      "Total lifecycle operations by collection, operation and outcome",
		},
		[]string{"collection", "operation", "status"},
	)

	HookFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "momentum",
			Name:      "hook_failures_total",
			Help:      "Total post-commit hook failures by collection and hook type",
		},
		[]string{"collection", "hook"},
	)

	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "momentum",
			Name:      "webhook_deliveries_total",
			Help:      "Total webhook delivery attempts by outcome",
		},
		[]string{"status"},
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers engine Prometheus metrics. Must be called once from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(HookFailuresTotal)
	prometheus.MustRegister(WebhookDeliveriesTotal)
	engineMetricsRegistered = true
}
