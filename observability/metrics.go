package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ledgerMetrics struct {
	events   *prometheus.CounterVec
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// Ledger returns the lazily-initialised metrics registry tracking ledger
// transitions and RPC activity.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendledger",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of ledger notifications segmented by event type.",
			}, []string{"type"}),
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendledger",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lendledger",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.events,
			ledgerRegistry.requests,
			ledgerRegistry.latency,
		)
	})
	return ledgerRegistry
}

// RecordEvent increments the emitted-event counter for the supplied type.
func (m *ledgerMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.events.WithLabelValues(normalized).Inc()
}

// RecordRequest increments the request counter for the method and outcome.
func (m *ledgerMetrics) RecordRequest(method, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
}

// ObserveLatency records the handler duration for the method.
func (m *ledgerMetrics) ObserveLatency(method string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}
