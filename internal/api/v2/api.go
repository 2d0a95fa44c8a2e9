// internal/api/v2/api.go
package api

import (
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/frogwatch/frogwatch-go/internal/auth"
	"github.com/frogwatch/frogwatch-go/internal/conf"
	"github.com/frogwatch/frogwatch-go/internal/datastore"
	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/livequery"
	"github.com/frogwatch/frogwatch-go/internal/logging"
	"github.com/frogwatch/frogwatch-go/internal/observability"
	"github.com/frogwatch/frogwatch-go/internal/observation"
	"github.com/frogwatch/frogwatch-go/internal/review"
)

// actorHeader carries the authenticated actor's UID. Authentication itself
// happens upstream; this API consumes identity only.
const actorHeader = "X-Actor-ID"

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	engine *review.Engine
	live   *livequery.Service
	// identity carries the ambient identity for requests without an actor
	// header. May be nil.
	identity auth.Provider

	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error
	metrics        *observability.Metrics
	startTime      time.Time
}

// New creates the API controller and registers its routes.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	engine *review.Engine, live *livequery.Service, identity auth.Provider,
	m *observability.Metrics) *Controller {

	c := &Controller{
		Echo:        e,
		DS:          ds,
		Settings:    settings,
		engine:      engine,
		live:        live,
		identity:    identity,
		metrics:     m,
		apiLevelVar: new(slog.LevelVar),
		startTime:   time.Now(),
	}

	c.apiLevelVar.Set(slog.LevelInfo)
	var err error
	c.apiLogger, c.apiLoggerClose, err = logging.NewFileLogger(
		filepath.Join("logs", "api.log"), "api", c.apiLevelVar)
	if err != nil {
		log.Printf("Failed to initialize API file logger: %v. API logging disabled.", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: c.apiLevelVar})
		c.apiLogger = slog.New(fbHandler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	}

	e.Use(middleware.Recover())

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Echo.GET("/healthz", c.Healthz)
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	c.Group = c.Echo.Group("/api/v2")
	c.Group.GET("/recordings", c.ListRecordings)
	c.Group.POST("/recordings", c.SubmitRecording)
	c.Group.POST("/recordings/:id/review", c.ReviewRecording)
	c.Group.POST("/recordings/:id/resubmit", c.ResubmitRecording)
	c.Group.GET("/recordings/stream", c.StreamRecordings)
	c.Group.GET("/users", c.ListUsers)
	c.Group.POST("/users/:id/role", c.ChangeRole)
	c.Group.POST("/users/me/request-expert", c.RequestExpert)
}

// Shutdown flushes the API log writer.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		_ = c.apiLoggerClose()
	}
}

// Healthz reports liveness. It does nothing slow.
func (c *Controller) Healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(c.startTime).Seconds(),
	})
}

// resolveActor loads the acting account for a request. Identity comes from
// the actor header; role resolution already happened at the datastore
// boundary, so handlers and the engine only see the canonical role.
func (c *Controller) resolveActor(ctx echo.Context) (observation.User, error) {
	uid := ctx.Request().Header.Get(actorHeader)
	if uid == "" && c.identity != nil {
		if id, ok := c.identity.CurrentActor(); ok {
			uid = id.UID
		}
	}
	if uid == "" {
		return observation.User{}, errors.Newf("no actor identity on request").
			Component("api").
			Category(errors.CategoryAuthorization).
			UserMessage("Please sign in first.").
			Build()
	}
	return c.DS.GetUser(uid)
}

// handleError maps an error to an HTTP response carrying only the
// user-facing message; diagnostic detail goes to the API log.
func (c *Controller) handleError(ctx echo.Context, err error) error {
	status := http.StatusInternalServerError
	message := "Something went wrong, please try again."

	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		message = enhanced.UserMessage()
		switch enhanced.Category {
		case errors.CategoryValidation:
			status = http.StatusBadRequest
		case errors.CategoryAuthorization:
			status = http.StatusForbidden
		case errors.CategoryNotFound:
			status = http.StatusNotFound
		case errors.CategoryConflict, errors.CategoryState:
			status = http.StatusConflict
		case errors.CategoryNetwork, errors.CategoryTimeout:
			status = http.StatusServiceUnavailable
		}
	}

	c.apiLogger.Error("request failed",
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"status", status,
		"error", err)

	return ctx.JSON(status, map[string]string{"error": message})
}
