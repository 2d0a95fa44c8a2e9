// Package datastore logging setup, shared by the SQLite and MySQL stores.
package datastore

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/frogwatch/frogwatch-go/internal/logging"
)

var (
	datastoreLogger   *slog.Logger
	datastoreLevelVar = new(slog.LevelVar)
	loggerCloseFunc   func() error
	loggerOnce        sync.Once
)

const defaultLogPath = "logs/datastore.log"

// getLogger returns the datastore file logger, initializing it on first use.
func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		datastoreLevelVar.Set(slog.LevelInfo)

		var err error
		datastoreLogger, loggerCloseFunc, err = logging.NewFileLogger(defaultLogPath, "datastore", datastoreLevelVar)
		if err != nil {
			logging.Error("Failed to initialize datastore file logger", "error", err)
			fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: datastoreLevelVar})
			datastoreLogger = slog.New(fbHandler).With("service", "datastore")
			loggerCloseFunc = func() error { return nil }
		}
	})
	return datastoreLogger
}

// CloseLogger flushes and closes the datastore log writer.
func CloseLogger() error {
	if loggerCloseFunc != nil {
		return loggerCloseFunc()
	}
	return nil
}

// gormLogAdapter adapts the slog file logger to GORM's Printf-style interface.
type gormLogAdapter struct{}

func newGormLogAdapter() *gormLogAdapter {
	return &gormLogAdapter{}
}

// Printf implements gorm logger.Writer.
func (a *gormLogAdapter) Printf(format string, args ...any) {
	getLogger().Warn(fmt.Sprintf(format, args...))
}
