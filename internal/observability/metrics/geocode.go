// Package metrics provides Prometheus metrics for the service collaborators.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GeocodeMetrics contains Prometheus metrics for the reverse-geocode memoizer.
type GeocodeMetrics struct {
	cacheHitsTotal    prometheus.Counter
	cacheMissesTotal  prometheus.Counter
	lookupErrorsTotal prometheus.Counter
}

// NewGeocodeMetrics creates and registers new geocode metrics.
func NewGeocodeMetrics(registry *prometheus.Registry) (*GeocodeMetrics, error) {
	m := &GeocodeMetrics{
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geocode_cache_hits_total",
			Help: "Total number of reverse-geocode cache hits",
		}),
		cacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geocode_cache_misses_total",
			Help: "Total number of reverse-geocode cache misses",
		}),
		lookupErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geocode_lookup_errors_total",
			Help: "Total number of failed external geocoder calls",
		}),
	}

	for _, c := range []prometheus.Collector{m.cacheHitsTotal, m.cacheMissesTotal, m.lookupErrorsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordCacheHit increments the cache hit counter.
func (m *GeocodeMetrics) RecordCacheHit() {
	m.cacheHitsTotal.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (m *GeocodeMetrics) RecordCacheMiss() {
	m.cacheMissesTotal.Inc()
}

// RecordLookupError increments the lookup error counter.
func (m *GeocodeMetrics) RecordLookupError() {
	m.lookupErrorsTotal.Inc()
}
