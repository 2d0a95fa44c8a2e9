// Package conf loads and exposes the application settings. Settings are read
// from a YAML config file through viper with sensible defaults for every key.
package conf

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Log rotation types
const (
	RotationDaily  = "daily"
	RotationWeekly = "weekly"
	RotationSize   = "size"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool   // true to enable this log
	Path     string // path to log file
	Rotation string // rotation type, daily, weekly or size
	MaxSize  int64  // max size in bytes for size rotation
}

// MainSettings contains the main application settings
type MainSettings struct {
	Name string    // name of this node, used to identify the source of submissions
	Log  LogConfig // main log file settings
}

// SQLiteSettings contains SQLite database settings
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite
	Path    string // path to SQLite database file
}

// MySQLSettings contains MySQL database settings
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings contains database output settings
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// PredictorSettings contains settings for the external species predictor
type PredictorSettings struct {
	Endpoints    []string      // predictor endpoints, tried in order
	Timeout      time.Duration // per-call timeout
	MockFallback bool          // fall back to a local mock prediction when all endpoints fail
}

// GeocoderSettings contains settings for the reverse geocoding service
type GeocoderSettings struct {
	BaseURL string        // geocoder endpoint
	Timeout time.Duration // per-call timeout
}

// RealtimeSettings contains settings for the live synchronization layer
type RealtimeSettings struct {
	Debug      bool // true to enable debug logging of broadcasts
	BufferSize int  // per-subscriber snapshot channel buffer
}

// WebServerSettings contains settings for the HTTP API
type WebServerSettings struct {
	Enabled bool   // true to enable the HTTP API
	Port    string // port to listen on
	Debug   bool   // true to enable request debug logging
}

// BlobStoreSettings contains settings for resolving audio blob references
type BlobStoreSettings struct {
	BaseURL string // base URL audio paths are resolved against
}

// Settings contains all application settings
type Settings struct {
	Debug     bool // true to enable debug mode
	Main      MainSettings
	Output    OutputSettings
	Predictor PredictorSettings
	Geocoder  GeocoderSettings
	Realtime  RealtimeSettings
	WebServer WebServerSettings
	BlobStore BlobStoreSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into the global Settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func initViper() error {
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}
	viper.SetConfigName("config")

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !asConfigFileNotFound(err, &configFileNotFoundError) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// No config file is fine, defaults apply.
		log.Println("Config file not found, using defaults")
	}

	return nil
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

// Setting returns the global settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("error loading settings: %v", err)
			}
		}
	})

	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SyncViper re-unmarshals viper's current values into the settings struct,
// letting bound command-line flags override the config file.
func SyncViper(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	if err := viper.Unmarshal(settings); err != nil {
		log.Printf("error syncing flags into settings: %v", err)
	}
}

// GetSettings returns the current settings instance without triggering a load.
// Returns nil before Load() has been called.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetTestSettings replaces the global settings instance. Intended for tests.
func SetTestSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	once.Do(func() {})
	settingsInstance = settings
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user directory: %w", err)
	}

	configPaths := []string{
		".",
		filepath.Join(homeDir, ".config", "frogwatch"),
	}

	return configPaths, nil
}

func validateSettings(settings *Settings) error {
	if len(settings.Predictor.Endpoints) == 0 && !settings.Predictor.MockFallback {
		return fmt.Errorf("no predictor endpoints configured and mock fallback is disabled")
	}
	if settings.Predictor.Timeout <= 0 {
		return fmt.Errorf("predictor timeout must be positive, got %v", settings.Predictor.Timeout)
	}
	if settings.Realtime.BufferSize <= 0 {
		return fmt.Errorf("realtime buffer size must be positive, got %d", settings.Realtime.BufferSize)
	}
	return nil
}
