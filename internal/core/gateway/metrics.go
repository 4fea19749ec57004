package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "whiskey"

type metrics struct {
	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	queueDepth   prometheus.Gauge
}

// newMetrics builds the gateway collectors; reg may be nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "transactions_total",
			Help:      "Number of transactions executed, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "transaction_duration_seconds",
			Help:      "Time spent executing a transaction in the backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "queue_depth",
			Help:      "Committed transactions waiting for the dispatcher.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transactions, m.duration, m.queueDepth)
	}
	return m
}

func (m *metrics) observe(mode Mode, err error, d time.Duration) {
	outcome := "committed"
	if err != nil {
		outcome = "aborted"
	}
	m.transactions.WithLabelValues(mode.String(), outcome).Inc()
	m.duration.WithLabelValues(mode.String()).Observe(d.Seconds())
}
