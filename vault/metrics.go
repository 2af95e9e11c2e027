package vault

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the vault's Prometheus collectors.
type Metrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the vault collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vault",
			Name:      "operations_total",
			Help:      "Number of state-changing vault operations attempted.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vault",
			Name:      "operation_failures_total",
			Help:      "Number of vault operations reverted, by reason.",
		}, []string{"op", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vault",
			Name:      "operation_duration_seconds",
			Help:      "Time spent applying and committing a vault operation.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"op"}),
	}
	reg.MustRegister(m.operations, m.failures, m.duration)
	return m
}
