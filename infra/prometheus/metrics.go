// Package prometheus implements metrics.StoreMetrics on top of the Prometheus client.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/0m3kk/eventsauce/metrics"
)

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// storeMetrics implements metrics.StoreMetrics using Prometheus.
type storeMetrics struct {
	eventsPersisted *prometheus.CounterVec
	eventsPurged    *prometheus.CounterVec
	txCommitted     *prometheus.CounterVec
	txRolledBack    *prometheus.CounterVec
	commitDuration  *prometheus.HistogramVec
}

// NewStoreMetrics creates the store metrics and registers them on reg.
func NewStoreMetrics(reg prometheus.Registerer) metrics.StoreMetrics {
	m := &storeMetrics{
		eventsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventsauce_events_persisted_total",
			Help: "Total number of events written to the event log",
		}, []string{"backend", "entity_type", "event_type"}),

		eventsPurged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventsauce_events_purged_total",
			Help: "Total number of events whose data was scrubbed by a purge",
		}, []string{"backend", "entity_type"}),

		txCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventsauce_tx_committed_total",
			Help: "Total number of committed transactions",
		}, []string{"backend"}),

		txRolledBack: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventsauce_tx_rolled_back_total",
			Help: "Total number of rolled back transactions",
		}, []string{"backend"}),

		commitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventsauce_tx_commit_duration_seconds",
			Help:    "Transaction commit latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"backend"}),
	}

	reg.MustRegister(
		m.eventsPersisted,
		m.eventsPurged,
		m.txCommitted,
		m.txRolledBack,
		m.commitDuration,
	)

	return m
}

func (m *storeMetrics) EventPersisted(backend, entityType, eventType string) {
	m.eventsPersisted.WithLabelValues(backend, entityType, eventType).Inc()
}

func (m *storeMetrics) EventsPurged(backend, entityType string, count int64) {
	m.eventsPurged.WithLabelValues(backend, entityType).Add(float64(count))
}

func (m *storeMetrics) TxCommitted(backend string) {
	m.txCommitted.WithLabelValues(backend).Inc()
}

func (m *storeMetrics) TxRolledBack(backend string) {
	m.txRolledBack.WithLabelValues(backend).Inc()
}

func (m *storeMetrics) CommitDuration(backend string) metrics.Timer {
	return newTimer(m.commitDuration.WithLabelValues(backend))
}

var _ metrics.StoreMetrics = (*storeMetrics)(nil)
