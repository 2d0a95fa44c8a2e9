// Package geocode resolves coordinates to place names through a memoizing
// cache. Coordinates are rounded to three decimals (~100 m) before lookup,
// bounding both cache size and external call volume.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/patrickmn/go-cache"
	"github.com/frogwatch/frogwatch-go/internal/conf"
	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/logging"
	"github.com/frogwatch/frogwatch-go/internal/observability/metrics"
)

// Package-level logger specific to the geocode service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "geocode.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "geocode", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize geocode file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "geocode")
		closeLogger = func() error { return nil }
	}
}

// UnknownLocation is returned when the external geocoder cannot be reached
// or returns nothing useful. It is never cached, so a later lookup retries.
const UnknownLocation = "Unknown Location"

// Provider resolves one coordinate pair to a place name.
type Provider interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// Memoizer wraps a Provider with an unbounded, never-evicted cache keyed by
// the rounded coordinates. Concurrent misses for the same key may each issue
// a call; the cache write is idempotent, so the values agree.
type Memoizer struct {
	provider Provider
	cache    *cache.Cache
	metrics  *metrics.GeocodeMetrics
}

// NewMemoizer creates a memoizer around the given provider.
func NewMemoizer(provider Provider, m *metrics.GeocodeMetrics) *Memoizer {
	return &Memoizer{
		provider: provider,
		cache:    cache.New(cache.NoExpiration, 0),
		metrics:  m,
	}
}

// CacheKey rounds both coordinates to three decimal places and joins them
// into the memoization key.
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lon)
}

// ReverseGeocode returns the place name for the given coordinates. Lookup
// failures yield UnknownLocation without poisoning the cache.
func (m *Memoizer) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	key := CacheKey(lat, lon)

	if cached, found := m.cache.Get(key); found {
		if name, ok := cached.(string); ok {
			if m.metrics != nil {
				m.metrics.RecordCacheHit()
			}
			return name
		}
	}
	if m.metrics != nil {
		m.metrics.RecordCacheMiss()
	}

	name, err := m.provider.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordLookupError()
		}
		logger.Warn("reverse geocode failed, returning sentinel",
			"key", key,
			"error", err)
		return UnknownLocation
	}
	if name == "" {
		return UnknownLocation
	}

	// Last write wins; concurrent misses resolve to the same value.
	m.cache.Set(key, name, cache.NoExpiration)

	logger.Debug("reverse geocode resolved", "key", key, "place", name)
	return name
}

// ItemCount returns the number of memoized keys.
func (m *Memoizer) ItemCount() int {
	return m.cache.ItemCount()
}

// nominatimResponse is the subset of the reverse-geocode reply we read.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		County  string `json:"county"`
		State   string `json:"state"`
	} `json:"address"`
}

// HTTPProvider calls a Nominatim-compatible reverse geocoding endpoint.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProvider creates a provider from the geocoder settings.
func NewHTTPProvider(settings *conf.GeocoderSettings) *HTTPProvider {
	return &HTTPProvider{
		baseURL: settings.BaseURL,
		httpClient: &http.Client{
			Timeout: settings.Timeout,
		},
	}
}

// ReverseGeocode performs one lookup against the configured endpoint.
func (p *HTTPProvider) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	query := url.Values{}
	query.Set("lat", fmt.Sprintf("%f", lat))
	query.Set("lon", fmt.Sprintf("%f", lon))
	query.Set("format", "jsonv2")

	reqURL := fmt.Sprintf("%s?%s", p.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", errors.New(err).
			Component("geocode").
			Category(errors.CategoryNetwork).
			Build()
	}
	req.Header.Set("User-Agent", "frogwatch-go")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", errors.New(err).
			Component("geocode").
			Category(errors.CategoryNetwork).
			Context("operation", "reverse_geocode").
			Build()
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("failed to close geocoder response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("geocoder returned status %d", resp.StatusCode).
			Component("geocode").
			Category(errors.CategoryHTTP).
			Context("status", resp.StatusCode).
			Build()
	}

	var parsed nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.New(err).
			Component("geocode").
			Category(errors.CategoryGeocode).
			Context("operation", "decode_response").
			Build()
	}

	return placeName(&parsed), nil
}

// placeName picks the most specific locality from the reply, falling back to
// the full display name.
func placeName(r *nominatimResponse) string {
	for _, candidate := range []string{
		r.Address.City,
		r.Address.Town,
		r.Address.Village,
		r.Address.County,
		r.Address.State,
	} {
		if candidate != "" {
			return candidate
		}
	}
	return r.DisplayName
}

// Close flushes the service log writer.
func Close() {
	if closeLogger != nil {
		_ = closeLogger()
	}
}
