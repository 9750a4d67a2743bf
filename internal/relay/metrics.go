package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	connectedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gqlrelay_upstream_connected",
		Help: "Whether the extension has announced itself on the upstream channel (1 or 0)",
	})
	pendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gqlrelay_pending_requests",
		Help: "Number of requests currently awaiting a response",
	})
	requestsForwardedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gqlrelay_requests_forwarded_total",
		Help: "Total number of client requests forwarded upstream",
	})
	requestsRejectedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gqlrelay_requests_rejected_total",
		Help: "Total number of client requests rejected before forwarding",
	})
	requestsTimedOutCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gqlrelay_requests_timed_out_total",
		Help: "Total number of pending requests evicted on timeout",
	})
	responsesRelayedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gqlrelay_responses_relayed_total",
		Help: "Total number of responses delivered to clients",
	})
	responsesDroppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gqlrelay_responses_dropped_total",
		Help: "Total number of responses with no matching pending request",
	})
	clientWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gqlrelay_client_write_failures_total",
		Help: "Total number of failed writes to client connections",
	})
	resolveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gqlrelay_resolve_duration_seconds",
		Help:    "Time from request submission to response delivery",
		Buckets: prometheus.DefBuckets,
	})
)

// metricsRegistry returns a registry with the relay collectors registered.
func metricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		connectedGauge,
		pendingGauge,
		requestsForwardedCounter,
		requestsRejectedCounter,
		requestsTimedOutCounter,
		responsesRelayedCounter,
		responsesDroppedCounter,
		clientWriteFailures,
		resolveDuration,
	)
	return reg
}
