// Package metrics registers the prometheus collectors exposed by each
// process's /metrics endpoint. Purely additive instrumentation — see
// SPEC_FULL.md §10.4.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gateway-side collectors.
var (
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "HTTP requests received by the gateway, by route and outcome.",
	}, []string{"route", "outcome"})

	GatewayBackendSelected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_backend_selected_total",
		Help: "Number of times each API backend was chosen by the round-robin selector.",
	}, []string{"backend"})
)

// Dispatcher-side collectors.
var (
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatcher_queue_depth",
		Help: "Number of payments currently buffered in the dispatcher's in-memory queue.",
	})

	WorkersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatcher_workers_busy",
		Help: "Number of worker goroutines currently processing a payment.",
	})

	ProviderAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_provider_attempts_total",
		Help: "Provider call attempts, by provider and outcome.",
	}, []string{"provider", "outcome"})

	PaymentsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_payments_dropped_total",
		Help: "Payments dropped after exhausting default and fallback providers.",
	})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "dispatcher_provider_latency_seconds",
		Help: "Latency of a single provider call attempt.",
	}, []string{"provider"})
)

// Store-side collectors.
var (
	StoreCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_commands_total",
		Help: "Store commands processed, by kind.",
	}, []string{"kind"})

	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "store_flush_duration_seconds",
		Help: "Duration of a periodic partition flush.",
	})

	FlushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_flush_errors_total",
		Help: "Flush attempts that returned an error.",
	})
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
