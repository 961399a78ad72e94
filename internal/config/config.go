// Package config loads plate-mcp settings from defaults, an optional YAML
// file, .env files and PLATE_MCP_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ironsheep/plate-text-mcp/internal/detection"
)

// EnvPrefix is prepended to every environment variable, e.g.
// PLATE_MCP_MIN_CONFIDENCE or PLATE_MCP_STORE_DSN.
const EnvPrefix = "PLATE_MCP"

// StoreConfig selects the optional readings sink.
type StoreConfig struct {
	// Driver is "mysql", "postgres" or empty to disable the sink.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Config holds the runtime settings shared by the server and the batch driver.
type Config struct {
	// LabelMap is the default label map path for calls that do not name one.
	LabelMap string `mapstructure:"label_map"`

	// NumClasses bounds the label map ids that are accepted.
	NumClasses int `mapstructure:"num_classes"`

	UseDisplayName bool `mapstructure:"use_display_name"`

	MinConfidence float64 `mapstructure:"min_confidence"`

	// LogLevel is one of debug, info, warn, error, silent.
	LogLevel string `mapstructure:"log_level"`

	// MetricsAddr enables the Prometheus endpoint when non-empty (e.g. ":9464").
	MetricsAddr string `mapstructure:"metrics_addr"`

	Store StoreConfig `mapstructure:"store"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("label_map", "")
	v.SetDefault("num_classes", 37)
	v.SetDefault("use_display_name", true)
	v.SetDefault("min_confidence", detection.DefaultMinConfidence)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("store.driver", "")
	v.SetDefault("store.dsn", "")
}

// Load builds the configuration.
//
// If path is empty, plate-mcp.yaml is searched for in the working directory
// and in $HOME/.config/plate-mcp; a missing file is not an error. If path is
// set, the file must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("plate-mcp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/plate-mcp")
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in defaults without reading files or the
// environment.
func Default() *Config {
	return &Config{
		NumClasses:     37,
		UseDisplayName: true,
		MinConfidence:  detection.DefaultMinConfidence,
		LogLevel:       "info",
	}
}

// CheckMinConfidence rejects a score cut outside [0,1].
func CheckMinConfidence(v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("min_confidence must be in [0,1], got %v", v)
	}
	return nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := CheckMinConfidence(c.MinConfidence); err != nil {
		return err
	}
	if c.LabelMap != "" && c.NumClasses <= 0 {
		return fmt.Errorf("num_classes must be positive when label_map is set, got %d", c.NumClasses)
	}
	switch c.Store.Driver {
	case "":
	case "mysql", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store.driver %q (want mysql or postgres)", c.Store.Driver)
	}
	return nil
}
