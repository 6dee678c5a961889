package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/gattwalk/pkg/report"
	"gopkg.in/yaml.v3"
)

// Connect policies
const (
	// ConnectFailFast aborts the run when the peripheral refuses the connection.
	ConnectFailFast = "fail-fast"
	// ConnectBestEffort reports the failure and continues the discovery anyway.
	ConnectBestEffort = "best-effort"
)

// Address types accepted by gatttool -t
const (
	AddressPublic = "public"
	AddressRandom = "random"
)

// Config holds application configuration
type Config struct {
	LogLevel        logrus.Level  `json:"log_level" yaml:"log_level"`
	Tool            string        `json:"tool" yaml:"tool" default:"gatttool"`
	Adapter         string        `json:"adapter" yaml:"adapter"`
	AddressType     string        `json:"address_type" yaml:"address_type" default:"public"`
	ConnectTimeout  time.Duration `json:"connect_timeout" yaml:"connect_timeout" default:"30s"`
	ResponseTimeout time.Duration `json:"response_timeout" yaml:"response_timeout" default:"10s"`
	SettleDelay     time.Duration `json:"settle_delay" yaml:"settle_delay" default:"1s"`
	PageSettle      time.Duration `json:"page_settle" yaml:"page_settle" default:"100ms"`
	ConnectPolicy   string        `json:"connect_policy" yaml:"connect_policy" default:"fail-fast"`
	OutputFormat    string        `json:"output_format" yaml:"output_format" default:"table"`
	MaxColumnWidth  int           `json:"max_column_width" yaml:"max_column_width" default:"20"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.LogLevel = logrus.WarnLevel
	return cfg
}

// Load reads a YAML configuration file over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated and numeric fields.
func (c *Config) Validate() error {
	if c.Tool == "" {
		return fmt.Errorf("tool path must not be empty")
	}
	if !slices.Contains(report.Formats, c.OutputFormat) {
		return fmt.Errorf("invalid output format: %s (must be one of %v)", c.OutputFormat, report.Formats)
	}
	if c.ConnectPolicy != ConnectFailFast && c.ConnectPolicy != ConnectBestEffort {
		return fmt.Errorf("invalid connect policy: %s (must be %s or %s)", c.ConnectPolicy, ConnectFailFast, ConnectBestEffort)
	}
	if c.AddressType != AddressPublic && c.AddressType != AddressRandom {
		return fmt.Errorf("invalid address type: %s (must be %s or %s)", c.AddressType, AddressPublic, AddressRandom)
	}
	if c.ConnectTimeout <= 0 || c.ResponseTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay must not be negative")
	}
	if c.PageSettle <= 0 {
		return fmt.Errorf("page settle must be positive")
	}
	if c.MaxColumnWidth < 0 {
		return fmt.Errorf("max column width must not be negative")
	}
	return nil
}

// BestEffortConnect reports whether a failed connect should be tolerated.
func (c *Config) BestEffortConnect() bool {
	return c.ConnectPolicy == ConnectBestEffort
}

// NewLogger creates a configured logger instance writing to stderr
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
