package geocode

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frogwatch/frogwatch-go/internal/conf"
)

type countingProvider struct {
	calls atomic.Int64
	name  string
	err   error
}

func (p *countingProvider) ReverseGeocode(context.Context, float64, float64) (string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return "", p.err
	}
	return p.name, nil
}

func TestCacheKeyRounding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"plain rounding", 45.12345, -75.98765, "45.123,-75.988"},
		{"pads to three decimals", 45.1, -75.9, "45.100,-75.900"},
		{"zero", 0, 0, "0.000,0.000"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CacheKey(tt.lat, tt.lon))
		})
	}
}

func TestMemoizerSingleCallPerRoundedKey(t *testing.T) {
	t.Parallel()

	provider := &countingProvider{name: "Bullfrog Lake"}
	memo := NewMemoizer(provider, nil)
	ctx := context.Background()

	// Nearby coordinates collapse onto the same rounded key.
	assert.Equal(t, "Bullfrog Lake", memo.ReverseGeocode(ctx, 45.12301, -75.98799))
	assert.Equal(t, "Bullfrog Lake", memo.ReverseGeocode(ctx, 45.12320, -75.98810))
	assert.Equal(t, "Bullfrog Lake", memo.ReverseGeocode(ctx, 45.12349, -75.98780))

	assert.Equal(t, int64(1), provider.calls.Load())
	assert.Equal(t, 1, memo.ItemCount())
}

func TestMemoizerDistinctKeysCallSeparately(t *testing.T) {
	t.Parallel()

	provider := &countingProvider{name: "Somewhere"}
	memo := NewMemoizer(provider, nil)
	ctx := context.Background()

	memo.ReverseGeocode(ctx, 45.123, -75.988)
	memo.ReverseGeocode(ctx, 45.124, -75.988)

	assert.Equal(t, int64(2), provider.calls.Load())
	assert.Equal(t, 2, memo.ItemCount())
}

func TestMemoizerSentinelNotCached(t *testing.T) {
	t.Parallel()

	provider := &countingProvider{err: errors.New("connection refused")}
	memo := NewMemoizer(provider, nil)
	ctx := context.Background()

	assert.Equal(t, UnknownLocation, memo.ReverseGeocode(ctx, 45.123, -75.988))
	assert.Equal(t, 0, memo.ItemCount(), "failures must not poison the cache")

	// The provider recovers; the same key retries and the result is cached.
	provider.err = nil
	provider.name = "Frog Pond"
	assert.Equal(t, "Frog Pond", memo.ReverseGeocode(ctx, 45.123, -75.988))
	assert.Equal(t, "Frog Pond", memo.ReverseGeocode(ctx, 45.123, -75.988))
	assert.Equal(t, int64(3), provider.calls.Load())
	assert.Equal(t, 1, memo.ItemCount())
}

func TestMemoizerEmptyNameYieldsSentinel(t *testing.T) {
	t.Parallel()

	provider := &countingProvider{name: ""}
	memo := NewMemoizer(provider, nil)

	assert.Equal(t, UnknownLocation, memo.ReverseGeocode(context.Background(), 1, 2))
	assert.Equal(t, 0, memo.ItemCount())
}

func TestMemoizerConcurrentMissesAgree(t *testing.T) {
	t.Parallel()

	provider := &countingProvider{name: "Marsh Trail"}
	memo := NewMemoizer(provider, nil)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = memo.ReverseGeocode(context.Background(), 45.123, -75.988)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "Marsh Trail", r)
	}
	assert.Equal(t, 1, memo.ItemCount())
}

func TestHTTPProviderParsesLocality(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, `=~^https://nominatim\.example\.org/reverse`,
		httpmock.NewStringResponder(http.StatusOK, `{
			"display_name": "Bullfrog Lake, Frontenac County, Ontario, Canada",
			"address": {"town": "Bullfrog Lake", "county": "Frontenac County", "state": "Ontario"}
		}`))

	provider := NewHTTPProvider(&conf.GeocoderSettings{
		BaseURL: "https://nominatim.example.org/reverse",
		Timeout: 5 * time.Second,
	})
	httpmock.ActivateNonDefault(provider.httpClient)

	name, err := provider.ReverseGeocode(context.Background(), 44.5, -76.5)
	require.NoError(t, err)
	assert.Equal(t, "Bullfrog Lake", name)
}

func TestHTTPProviderFallsBackToDisplayName(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, `=~^https://nominatim\.example\.org/reverse`,
		httpmock.NewStringResponder(http.StatusOK, `{"display_name": "Somewhere remote"}`))

	provider := NewHTTPProvider(&conf.GeocoderSettings{
		BaseURL: "https://nominatim.example.org/reverse",
		Timeout: 5 * time.Second,
	})
	httpmock.ActivateNonDefault(provider.httpClient)

	name, err := provider.ReverseGeocode(context.Background(), 60, -100)
	require.NoError(t, err)
	assert.Equal(t, "Somewhere remote", name)
}

func TestHTTPProviderErrorStatus(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, `=~^https://nominatim\.example\.org/reverse`,
		httpmock.NewStringResponder(http.StatusTooManyRequests, "slow down"))

	provider := NewHTTPProvider(&conf.GeocoderSettings{
		BaseURL: "https://nominatim.example.org/reverse",
		Timeout: 5 * time.Second,
	})
	httpmock.ActivateNonDefault(provider.httpClient)

	_, err := provider.ReverseGeocode(context.Background(), 44.5, -76.5)
	assert.Error(t, err)
}
