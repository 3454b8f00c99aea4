// Package metrics exposes Prometheus instruments for ledger invocations.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's instruments on a private registry, so several
// engines in one process (tests, replay) never collide on registration.
type Metrics struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rewards     *prometheus.CounterVec
}

// New creates the instruments and registers them.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perks",
			Subsystem: "ledger",
			Name:      "invocations_total",
			Help:      "Ledger invocations segmented by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "perks",
			Subsystem: "ledger",
			Name:      "invocation_duration_seconds",
			Help:      "Latency distribution of ledger invocations, store commit included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		rewards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perks",
			Subsystem: "ledger",
			Name:      "reward_events_total",
			Help:      "Reward tokens issued or transferred.",
		}, []string{"event"}),
	}
	m.registry.MustRegister(m.invocations, m.latency, m.rewards)
	return m
}

// Observe records one finished invocation. outcome is "ok", a ledger error
// kind, or "internal". A nil Metrics ignores the call.
func (m *Metrics) Observe(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RewardsIssued counts n newly issued reward tokens.
func (m *Metrics) RewardsIssued(n int) {
	if m == nil {
		return
	}
	m.rewards.WithLabelValues("issued").Add(float64(n))
}

// RewardTransferred counts one reward moved to a student.
func (m *Metrics) RewardTransferred() {
	if m == nil {
		return
	}
	m.rewards.WithLabelValues("transferred").Inc()
}

// Registry returns the registry holding the instruments.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in the text exposition format,
// for collection by node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
