// Package config loads, defaults, and validates the service
// configuration, and provides the factories that turn configuration
// sections into live store and backend instances.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete service configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (VOSPACE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store and backend implementation defines its own options. The
// Config struct contains type-specific sections (e.g. store.badger,
// backend.s3) and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains the HTTP listener settings
	Server ServerConfig `mapstructure:"server"`

	// Space identifies the namespace this service manages
	Space SpaceConfig `mapstructure:"space"`

	// Store specifies the metadata store type and type-specific configuration
	Store StoreConfig `mapstructure:"store"`

	// Backend specifies the byte store type and type-specific configuration
	Backend BackendConfig `mapstructure:"backend"`

	// Transfer controls endpoint lifetime and the reconciliation sweep
	Transfer TransferConfig `mapstructure:"transfer"`

	// Tables overrides the advertised capability tables
	Tables TablesConfig `mapstructure:"tables"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	// Host is the listen address
	Host string `mapstructure:"host" validate:"required"`

	// Port is the listen port
	Port int `mapstructure:"port" validate:"required,gt=0,lte=65535"`

	// BaseURL is the externally reachable base of this service. It is
	// embedded in endpoint and result URLs handed to clients, so it must
	// be resolvable from outside when the service sits behind a proxy.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// SpaceConfig identifies the namespace this service manages.
type SpaceConfig struct {
	// RootURI is the URI of the namespace root container. Every node
	// managed by this service lives under it.
	RootURI string `mapstructure:"root_uri" validate:"required"`

	// DataRoot is the backend location prefix node URIs resolve to.
	DataRoot string `mapstructure:"data_root"`
}

// StoreConfig specifies metadata store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type StoreConfig struct {
	// Type specifies which store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// BackendConfig specifies byte store configuration.
type BackendConfig struct {
	// Type specifies which backend implementation to use
	// Valid values: filesystem, s3
	Type string `mapstructure:"type" validate:"required,oneof=filesystem s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// TablesConfig overrides the capability tables the service advertises
// and negotiates against. Empty lists keep the built-in defaults.
type TablesConfig struct {
	// AcceptsViews are view URIs acceptable for inbound data
	AcceptsViews []string `mapstructure:"accepts_views"`

	// ProvidesViews are view URIs available for outbound data
	ProvidesViews []string `mapstructure:"provides_views"`

	// ServerGetProtocols serve downloads from service-minted endpoints
	ServerGetProtocols []string `mapstructure:"server_get_protocols"`

	// ServerPutProtocols serve uploads to service-minted endpoints
	ServerPutProtocols []string `mapstructure:"server_put_protocols"`

	// ClientGetProtocols serve fetches from client-supplied endpoints
	ClientGetProtocols []string `mapstructure:"client_get_protocols"`

	// ClientPutProtocols serve deliveries to client-supplied endpoints
	ClientPutProtocols []string `mapstructure:"client_put_protocols"`
}

// TransferConfig controls transfer coordination.
type TransferConfig struct {
	// EndpointTTL is how long a minted data endpoint stays valid
	EndpointTTL time.Duration `mapstructure:"endpoint_ttl" validate:"required,gt=0"`

	// ReconcileInterval is the period of the background job sweep
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" validate:"required,gt=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the VOSPACE_ prefix and underscores.
	// Example: VOSPACE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("VOSPACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is acceptable; defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to
// the current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vospace")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "vospace")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
