package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Total number of cart operations",
	}, []string{"operation", "result"})

	CheckoutTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_transitions_total",
		Help: "Total number of checkout workflow transitions",
	}, []string{"stage"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order confirmations",
	}, []string{"reason"})

	OrderConfirmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_confirm_latency_seconds",
		Help:    "Latency of order confirmation",
		Buckets: prometheus.DefBuckets,
	})

	CartClearFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_clear_failures_total",
		Help: "Total number of orders placed whose cart could not be cleared",
	})

	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliations_total",
		Help: "Total number of cart clear failures processed by the reconciliation worker",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

// Cart operation results
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// ObserveCartOperation counts a cart operation by outcome
func ObserveCartOperation(operation string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	CartOperationsTotal.WithLabelValues(operation, result).Inc()
}
