package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PredictorMetrics contains Prometheus metrics for the species predictor client.
type PredictorMetrics struct {
	requestsTotal   *prometheus.CounterVec
	failoversTotal  prometheus.Counter
	mockFallbacks   prometheus.Counter
	requestDuration prometheus.Histogram
}

// NewPredictorMetrics creates and registers new predictor metrics.
func NewPredictorMetrics(registry *prometheus.Registry) (*PredictorMetrics, error) {
	m := &PredictorMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictor_requests_total",
				Help: "Total number of predictor requests by endpoint and status",
			},
			[]string{"endpoint", "status"}, // status: success, error, timeout
		),
		failoversTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "predictor_failovers_total",
			Help: "Total number of failovers to the next configured endpoint",
		}),
		mockFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "predictor_mock_fallbacks_total",
			Help: "Total number of predictions served by the local mock fallback",
		}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "predictor_request_duration_seconds",
			Help:    "Duration of predictor requests",
			Buckets: prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.requestsTotal, m.failoversTotal, m.mockFallbacks, m.requestDuration} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordRequest counts one predictor request outcome.
func (m *PredictorMetrics) RecordRequest(endpoint, status string) {
	m.requestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordFailover counts one failover to the next endpoint.
func (m *PredictorMetrics) RecordFailover() {
	m.failoversTotal.Inc()
}

// RecordMockFallback counts one locally mocked prediction.
func (m *PredictorMetrics) RecordMockFallback() {
	m.mockFallbacks.Inc()
}

// RecordDuration observes one request duration in seconds.
func (m *PredictorMetrics) RecordDuration(seconds float64) {
	m.requestDuration.Observe(seconds)
}
