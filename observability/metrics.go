package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Latency buckets in seconds for a single delivery attempt.
var attemptLatencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics holds metric instruments for Courier, backed by any go-utils
// MetricFactory.
//
// The factory keys instruments by name, so per-outcome and per-status counts
// get one counter each, named courier_attempts_<outcome>_total and
// courier_deliveries_<status>_total.
type Metrics struct {
	factory gu.MetricFactory

	AttemptLatency gu.Histogram
	BackoffSeconds gu.Counter
	DLQPushed      gu.Counter
}

// NewMetrics creates Courier metric instruments using the supplied factory.
// Pass metrics.NewMetricsCollector("courier") for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		factory: factory,
		AttemptLatency: factory.Histogram("courier_attempt_latency_seconds",
			gu.WithDescription("Round-trip latency of a single delivery attempt"),
			gu.WithUnit("seconds"),
			gu.WithBuckets(attemptLatencyBuckets...)),
		BackoffSeconds: factory.Counter("courier_backoff_seconds_total",
			gu.WithDescription("Total time spent waiting between attempts"),
			gu.WithUnit("seconds")),
		DLQPushed: factory.Counter("courier_dlq_pushed_total",
			gu.WithDescription("Exhausted deliveries written to the dead letter queue")),
	}
}

// Attempts returns the attempt counter for outcome.
func (m *Metrics) Attempts(outcome string) gu.Counter {
	return m.factory.Counter("courier_attempts_"+outcome+"_total",
		gu.WithDescription("Delivery attempts by outcome"),
		gu.WithLabel("outcome", outcome))
}

// Deliveries returns the completed-delivery counter for status.
func (m *Metrics) Deliveries(status string) gu.Counter {
	return m.factory.Counter("courier_deliveries_"+status+"_total",
		gu.WithDescription("Completed delivery calls by final status"),
		gu.WithLabel("status", status))
}

// RecordAttempt records a delivery attempt with the given outcome and latency.
func (m *Metrics) RecordAttempt(outcome string, latencySeconds float64) {
	m.Attempts(outcome).Inc()
	m.AttemptLatency.Observe(latencySeconds)
}

// RecordDelivery records the terminal status of a delivery call.
func (m *Metrics) RecordDelivery(status string) {
	m.Deliveries(status).Inc()
}
