package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REGTIMER_LOG_LEVEL
const EnvPrefix = "REGTIMER"

// Config is the effective regtimer configuration.
type Config struct {
	Clock      string        `mapstructure:"clock" yaml:"clock" json:"clock"`
	LabelWidth int           `mapstructure:"label_width" yaml:"label_width" json:"label_width"`
	Output     string        `mapstructure:"output" yaml:"output" json:"output"`
	Log        LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
	Tracing    TracingConfig `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
	Server     ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	Serve      ServeConfig   `mapstructure:"serve" yaml:"serve" json:"serve"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"` // text or json
	File   string `mapstructure:"file" yaml:"file,omitempty" json:"file,omitempty"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"` // host:port of an OTLP/HTTP collector
	ServiceName string `mapstructure:"service_name" yaml:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" yaml:"environment" json:"environment"`
}

type ServerConfig struct {
	Listen      string `mapstructure:"listen" yaml:"listen" json:"listen"`
	HistorySize int    `mapstructure:"history_size" yaml:"history_size" json:"history_size"`
}

type ServeConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
}

// MarshalJSON renders the interval as a duration string, like the YAML form
func (s ServeConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Interval string `json:"interval"`
	}{s.Interval.String()})
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("clock", "monotonic")
	v.SetDefault("label_width", 20)
	v.SetDefault("output", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "regtimer")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("server.listen", ":9102")
	v.SetDefault("server.history_size", 50)
	v.SetDefault("serve.interval", "5m")
}

// DefaultPath returns $HOME/.regtimer/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, ".regtimer", "config.yaml"), nil
}

// Load reads configuration into v. An explicit file must exist; the default
// file is optional. Environment variables override file values.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else if path, err := DefaultPath(); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
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

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// Validate checks enumerations and ranges
func (c *Config) Validate() error {
	switch c.Clock {
	case "monotonic", "realtime":
	default:
		return fmt.Errorf("clock: unknown value %q (want monotonic or realtime)", c.Clock)
	}
	switch c.Output {
	case "text", "table", "json", "yaml":
	default:
		return fmt.Errorf("output: unknown value %q (want text, table, json or yaml)", c.Output)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown value %q (want text or json)", c.Log.Format)
	}
	if c.LabelWidth < 1 {
		return fmt.Errorf("label_width: must be positive, got %d", c.LabelWidth)
	}
	if c.Server.HistorySize < 1 {
		return fmt.Errorf("server.history_size: must be positive, got %d", c.Server.HistorySize)
	}
	if c.Serve.Interval <= 0 {
		return fmt.Errorf("serve.interval: must be positive, got %s", c.Serve.Interval)
	}
	return nil
}
