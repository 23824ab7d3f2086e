package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Business is the process-wide business metrics instance.
// Set once at startup; nil-checked at call sites so tests can skip it.
var Business *BusinessMetrics

// BusinessMetrics holds Prometheus metrics for hook-level observability.
type BusinessMetrics struct {
	// Webhooks
	HookReceived  *prometheus.CounterVec
	HookProcessed *prometheus.CounterVec
	HookFailed    *prometheus.CounterVec
	HookLatency   *prometheus.HistogramVec

	// Orders
	OrdersCreated *prometheus.CounterVec
	OrderValue    *prometheus.HistogramVec

	// Discounts
	DiscountApplied *prometheus.CounterVec

	// Shipping estimation
	ShippingEstimates   *prometheus.CounterVec
	EstimateCacheHits   prometheus.Counter
	EstimateCacheMisses prometheus.Counter
}

// NewBusinessMetrics creates and registers all business metrics.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "bifrost"
	}

	subsystem := "hooks"

	return &BusinessMetrics{
		HookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "received_total",
				Help:      "Total webhook deliveries received",
			},
			[]string{"hook"},
		),
		HookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "processed_total",
				Help:      "Total webhook deliveries processed successfully",
			},
			[]string{"hook"},
		),
		HookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "failed_total",
				Help:      "Total webhook deliveries that produced a failure envelope",
			},
			[]string{"hook", "reason"},
		),
		HookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "latency_seconds",
				Help:      "Webhook processing latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"hook"},
		),
		OrdersCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orders",
				Name:      "created_total",
				Help:      "Total orders materialized from hooks",
			},
			[]string{"currency"},
		),
		OrderValue: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "orders",
				Name:      "value_minor_units",
				Help:      "Order grand total in minor currency units",
				Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
			},
			[]string{"currency"},
		),
		DiscountApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discounts",
				Name:      "applied_total",
				Help:      "Total discount/gift-card codes applied",
			},
			[]string{"kind"},
		),
		ShippingEstimates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "shipping",
				Name:      "estimates_total",
				Help:      "Total shipping estimations performed",
			},
			[]string{"source"}, // cache or computed
		),
		EstimateCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "shipping",
				Name:      "estimate_cache_hits_total",
				Help:      "Shipping estimate prefetch cache hits",
			},
		),
		EstimateCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "shipping",
				Name:      "estimate_cache_misses_total",
				Help:      "Shipping estimate prefetch cache misses",
			},
		),
	}
}
