package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LivequeryMetrics contains Prometheus metrics for the snapshot sync service.
type LivequeryMetrics struct {
	activeSubscriptions   prometheus.Gauge
	snapshotsTotal        *prometheus.CounterVec
	droppedSnapshotsTotal prometheus.Counter
}

// NewLivequeryMetrics creates and registers new livequery metrics.
func NewLivequeryMetrics(registry *prometheus.Registry) (*LivequeryMetrics, error) {
	m := &LivequeryMetrics{
		activeSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livequery_active_subscriptions",
			Help: "Number of currently open snapshot subscriptions",
		}),
		snapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livequery_snapshots_total",
			Help: "Total number of snapshots delivered, by scope kind",
		}, []string{"scope"}),
		droppedSnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livequery_dropped_snapshots_total",
			Help: "Total number of stale snapshots shed for slow consumers",
		}),
	}

	for _, c := range []prometheus.Collector{m.activeSubscriptions, m.snapshotsTotal, m.droppedSnapshotsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SetActiveSubscriptions records the current subscription count.
func (m *LivequeryMetrics) SetActiveSubscriptions(n int) {
	m.activeSubscriptions.Set(float64(n))
}

// RecordSnapshot increments the delivered-snapshot counter for a scope kind.
func (m *LivequeryMetrics) RecordSnapshot(scope string) {
	m.snapshotsTotal.WithLabelValues(scope).Inc()
}

// RecordDroppedSnapshot increments the shed-snapshot counter.
func (m *LivequeryMetrics) RecordDroppedSnapshot() {
	m.droppedSnapshotsTotal.Inc()
}
