// Package observability bundles the Prometheus metrics for all collaborators
// behind one registry.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frogwatch/frogwatch-go/internal/observability/metrics"
)

// Metrics holds all application metrics.
type Metrics struct {
	registry *prometheus.Registry

	Geocode   *metrics.GeocodeMetrics
	Predictor *metrics.PredictorMetrics
	Livequery *metrics.LivequeryMetrics
}

// NewMetrics creates a registry and registers every metric group on it.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	geocodeMetrics, err := metrics.NewGeocodeMetrics(registry)
	if err != nil {
		return nil, err
	}

	predictorMetrics, err := metrics.NewPredictorMetrics(registry)
	if err != nil {
		return nil, err
	}

	livequeryMetrics, err := metrics.NewLivequeryMetrics(registry)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		registry:  registry,
		Geocode:   geocodeMetrics,
		Predictor: predictorMetrics,
		Livequery: livequeryMetrics,
	}, nil
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
