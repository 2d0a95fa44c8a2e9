// Package serve implements the command that runs the HTTP API server.
package serve

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	api "github.com/frogwatch/frogwatch-go/internal/api/v2"
	"github.com/frogwatch/frogwatch-go/internal/blobstore"
	"github.com/frogwatch/frogwatch-go/internal/conf"
	"github.com/frogwatch/frogwatch-go/internal/datastore"
	"github.com/frogwatch/frogwatch-go/internal/events"
	"github.com/frogwatch/frogwatch-go/internal/geocode"
	"github.com/frogwatch/frogwatch-go/internal/livequery"
	"github.com/frogwatch/frogwatch-go/internal/observability"
	"github.com/frogwatch/frogwatch-go/internal/predictor"
	"github.com/frogwatch/frogwatch-go/internal/review"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the observation API server",
		Long:  "Start the HTTP API, the live snapshot streams and the review workflow engine.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	setupFlags(cmd, settings)
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().StringSliceVar(&settings.Predictor.Endpoints, "predictor", viper.GetStringSlice("predictor.endpoints"), "Prediction service endpoint URLs, tried in order")
	cmd.Flags().BoolVar(&settings.Predictor.MockFallback, "mockfallback", viper.GetBool("predictor.mockfallback"), "Serve a flagged mock prediction when every endpoint fails")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		log.Printf("error binding serve flags: %v", err)
	}
}

func run(settings *conf.Settings) error {
	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}

	commits := events.NewBus(nil)
	defer commits.Shutdown()

	store := datastore.New(settings, commits)
	if store == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("error closing datastore: %v", err)
		}
	}()

	live := livequery.NewService(store, commits, &livequery.Config{
		BufferSize: settings.Realtime.BufferSize,
		Debug:      settings.Realtime.Debug,
		Metrics:    metrics.Livequery,
	})
	defer live.Shutdown()

	geocoder := geocode.NewMemoizer(geocode.NewHTTPProvider(&settings.Geocoder), metrics.Geocode)
	blobs := blobstore.New(&settings.BlobStore)
	pred := predictor.NewClient(&settings.Predictor, metrics.Predictor)

	engine := review.NewEngine(store, pred, blobs, geocoder)
	defer review.Close()

	e := echo.New()
	e.HideBanner = true
	controller := api.New(e, store, settings, engine, live, nil, metrics)
	defer controller.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Printf("received %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
