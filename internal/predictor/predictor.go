// Package predictor calls the external species prediction service. Endpoints
// are tried in configured order; when every endpoint fails the client falls
// over to a clearly-flagged local mock prediction so a submission is never
// stuck on an unreachable model.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/frogwatch/frogwatch-go/internal/conf"
	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/logging"
	"github.com/frogwatch/frogwatch-go/internal/observability/metrics"
	"github.com/frogwatch/frogwatch-go/internal/observation"
)

// Package-level logger specific to the predictor service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "predictor.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "predictor", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize predictor file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "predictor")
		closeLogger = func() error { return nil }
	}
}

// response is the wire format of a prediction reply.
type response struct {
	Species    string  `json:"species"`
	Confidence float64 `json:"confidence"`
	Top3       []struct {
		Species    string  `json:"species"`
		Confidence float64 `json:"confidence"`
	} `json:"top3"`
}

// Client calls the prediction endpoints with per-call timeouts and failover.
type Client struct {
	endpoints    []string
	timeout      time.Duration
	mockFallback bool
	httpClient   *http.Client
	metrics      *metrics.PredictorMetrics
}

// NewClient creates a predictor client from settings.
func NewClient(settings *conf.PredictorSettings, m *metrics.PredictorMetrics) *Client {
	return &Client{
		endpoints:    settings.Endpoints,
		timeout:      settings.Timeout,
		mockFallback: settings.MockFallback,
		httpClient:   &http.Client{},
		metrics:      m,
	}
}

// Predict identifies the species on an audio clip. Each configured endpoint
// is tried in order with a bounded call; a slow endpoint fails with a timeout
// rather than hanging the submission. When all endpoints are exhausted the
// client returns a mock prediction flagged as such, or an error when the
// mock fallback is disabled.
func (c *Client) Predict(ctx context.Context, audio []byte, lat, lon float64) (observation.AIPrediction, error) {
	var lastErr error

	for i, endpoint := range c.endpoints {
		if i > 0 {
			if c.metrics != nil {
				c.metrics.RecordFailover()
			}
			logger.Warn("failing over to next predictor endpoint",
				"endpoint", endpoint,
				"attempt", i+1)
		}

		prediction, err := c.predictOne(ctx, endpoint, audio, lat, lon)
		if err == nil {
			return prediction, nil
		}
		lastErr = err

		// A cancelled caller context stops the failover chain.
		if ctx.Err() != nil {
			return observation.AIPrediction{}, errors.New(ctx.Err()).
				Component("predictor").
				Category(errors.CategoryCancellation).
				Build()
		}
	}

	if c.mockFallback {
		if c.metrics != nil {
			c.metrics.RecordMockFallback()
		}
		logger.Warn("all predictor endpoints unavailable, using local mock prediction",
			"endpoints", len(c.endpoints),
			"error", lastErr)
		return MockPrediction(audio), nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no predictor endpoints configured")
	}
	return observation.AIPrediction{}, errors.New(lastErr).
		Component("predictor").
		Category(errors.CategoryNetwork).
		Context("endpoints", len(c.endpoints)).
		UserMessage("Species identification is temporarily unavailable, please try again.").
		Build()
}

// predictOne performs one bounded call against one endpoint.
func (c *Client) predictOne(ctx context.Context, endpoint string, audio []byte, lat, lon float64) (observation.AIPrediction, error) {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s?lat=%f&lon=%f", endpoint, lat, lon)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, reqURL, bytes.NewReader(audio))
	if err != nil {
		return observation.AIPrediction{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordDuration(time.Since(start).Seconds())
	}
	if err != nil {
		status := "error"
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			status = "timeout"
			err = errors.Newf("predictor call to %s timed out after %v", endpoint, c.timeout).
				Component("predictor").
				Category(errors.CategoryTimeout).
				Timing("predict", time.Since(start)).
				Build()
		}
		if c.metrics != nil {
			c.metrics.RecordRequest(endpoint, status)
		}
		logger.Error("predictor request failed",
			"endpoint", endpoint,
			"status", status,
			"error", err)
		return observation.AIPrediction{}, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("failed to close predictor response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		if c.metrics != nil {
			c.metrics.RecordRequest(endpoint, "error")
		}
		return observation.AIPrediction{}, errors.Newf("predictor returned status %d", resp.StatusCode).
			Component("predictor").
			Category(errors.CategoryHTTP).
			Context("endpoint_status", resp.StatusCode).
			Build()
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		if c.metrics != nil {
			c.metrics.RecordRequest(endpoint, "error")
		}
		return observation.AIPrediction{}, err
	}

	prediction := toPrediction(&parsed)
	if err := prediction.Validate(); err != nil {
		if c.metrics != nil {
			c.metrics.RecordRequest(endpoint, "error")
		}
		return observation.AIPrediction{}, err
	}

	if c.metrics != nil {
		c.metrics.RecordRequest(endpoint, "success")
	}
	logger.Debug("prediction received",
		"endpoint", endpoint,
		"species", prediction.Species,
		"confidence", prediction.Confidence)
	return prediction, nil
}

// toPrediction converts a wire reply into the domain type, trimming and
// sorting the candidate list to keep its invariants.
func toPrediction(r *response) observation.AIPrediction {
	p := observation.AIPrediction{
		Species:    r.Species,
		Confidence: r.Confidence,
	}
	for _, c := range r.Top3 {
		p.Top3 = append(p.Top3, observation.SpeciesGuess{
			Species:    c.Species,
			Confidence: c.Confidence,
		})
	}
	sort.SliceStable(p.Top3, func(i, j int) bool { return p.Top3[i].Confidence > p.Top3[j].Confidence })
	if len(p.Top3) > 3 {
		p.Top3 = p.Top3[:3]
	}
	return p
}

// mockSpecies are the candidates the local fallback rotates through.
var mockSpecies = []string{
	"American Bullfrog",
	"Spring Peeper",
	"Green Frog",
	"Wood Frog",
	"Gray Treefrog",
}

// MockPrediction produces a deterministic local prediction, flagged as mock
// so it is never mistaken for a model result.
func MockPrediction(audio []byte) observation.AIPrediction {
	idx := len(audio) % len(mockSpecies)
	p := observation.AIPrediction{
		Species:    mockSpecies[idx],
		Confidence: 0.5,
		Mock:       true,
	}
	for i := 0; i < 3; i++ {
		p.Top3 = append(p.Top3, observation.SpeciesGuess{
			Species:    mockSpecies[(idx+i)%len(mockSpecies)],
			Confidence: 0.5 - float64(i)*0.1,
		})
	}
	return p
}

// Close flushes the service log writer.
func Close() {
	if closeLogger != nil {
		_ = closeLogger()
	}
}
