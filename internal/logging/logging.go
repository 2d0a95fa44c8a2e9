// Package logging provides the shared slog setup: a structured JSON logger,
// a human-readable logger, and rotating per-service file loggers.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/frogwatch/frogwatch-go/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// replaceLevelNames maps the custom Trace/Fatal levels to readable labels.
func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		label, exists := levelNames[level]
		if !exists {
			label = level.String()
		}
		a.Value = slog.StringValue(label)
	}
	return a
}

func newJSONHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
}

func newTextHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
}

// Init initializes the logging system with structured and human-readable loggers.
// JSON output goes to stdout, text output to stderr.
func Init() {
	structuredLogger = slog.New(newJSONHandler(os.Stdout, slog.LevelDebug))
	humanReadableLogger = slog.New(newTextHandler(os.Stderr, slog.LevelInfo))
	slog.SetDefault(structuredLogger)
}

// SetOutput redirects both loggers, preserving default levels. Used in tests.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	structuredLogger = slog.New(newJSONHandler(structuredOutput, slog.LevelDebug))
	humanReadableLogger = slog.New(newTextHandler(humanReadableOutput, slog.LevelInfo))
	slog.SetDefault(structuredLogger)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (Text) logger.
// Returns nil if Init() has not been called.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService creates a new logger instance with the 'service' attribute added.
// Returns nil if Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}

// --- Convenience functions using the default logger ---

// Debug logs a debug message using the default slog logger.
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Info logs an info message using the default slog logger.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Warn logs a warning message using the default slog logger.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs an error message using the default slog logger.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// Fatal logs a fatal message using the custom Fatal level and then exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs a trace message using the custom Trace level.
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// NewFileLogger creates a slog.Logger writing JSON logs to the given file
// path, rotated by lumberjack according to the global log configuration. All
// entries carry a 'service' attribute. It returns the logger, a close
// function for the underlying writer, and an error if setup fails.
func NewFileLogger(filePath, serviceName string, level slog.Leveler) (*slog.Logger, func() error, error) {
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logConf := conf.Setting().Main.Log

	logWriter := &lumberjack.Logger{
		Filename: filePath,
	}

	// Defaults for size-based rotation, overridden by config below.
	maxSizeMB := 100
	maxBackups := 3
	maxAge := 28 // days

	if configMaxSizeMB := int(logConf.MaxSize / (1024 * 1024)); configMaxSizeMB > 0 {
		maxSizeMB = configMaxSizeMB
	}

	switch logConf.Rotation {
	case conf.RotationDaily:
		maxAge = 1
		maxBackups = 30
	case conf.RotationWeekly:
		maxAge = 7
		maxBackups = 4
	case conf.RotationSize:
		// size-based rotation uses the defaults derived above
	default:
		slog.Warn("Unknown log rotation type in config, using size-based defaults", "configuredType", logConf.Rotation)
	}

	logWriter.MaxSize = maxSizeMB
	logWriter.MaxBackups = maxBackups
	logWriter.MaxAge = maxAge

	logger := slog.New(newJSONHandler(logWriter, level)).With("service", serviceName)

	closeFunc := func() error {
		return logWriter.Close()
	}

	return logger, closeFunc, nil
}
