// Package config loads the signupdesk configuration.
//
// Settings come from a YAML file. A .env file in the working directory is
// loaded first if present, then SIGNUPDESK_* environment variables override
// individual fields.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Service defaults
	defaultServiceTimeout = 10 * time.Second

	// UI defaults, matching the browser client
	defaultLocale         = "en"
	defaultMessageTimeout = 5 * time.Second
	defaultLoginHideDelay = 1 * time.Second

	// Dashboard defaults
	defaultListenAddr = ":8080"
	defaultLogLimit   = 100

	// Monitoring defaults
	defaultMetricsPrefix = "signupdesk"
	defaultJobName       = "signupdesk"

	// Logging defaults
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	defaultLogOutput = "stderr"
)

// Config represents the complete application configuration
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	UI         UIConfig         `yaml:"ui"`
	Server     ServerConfig     `yaml:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServiceConfig locates the activity service
type ServiceConfig struct {
	// URL is the base URL of the activity service, including the scheme
	URL     string        `yaml:"url" env:"SIGNUPDESK_SERVICE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"SIGNUPDESK_SERVICE_TIMEOUT"`
}

// UIConfig controls the client session
type UIConfig struct {
	Locale         string        `yaml:"locale" env:"SIGNUPDESK_LOCALE"`
	MessageTimeout time.Duration `yaml:"message_timeout"`
	LoginHideDelay time.Duration `yaml:"login_hide_delay"`
	// RefreshSchedule is an optional 5-field cron spec for periodic roster
	// refreshes in the dashboard
	RefreshSchedule string `yaml:"refresh_schedule" env:"SIGNUPDESK_REFRESH_SCHEDULE"`
}

// ServerConfig holds dashboard settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"SIGNUPDESK_LISTEN_ADDR"`
	LogLimit   int    `yaml:"log_limit"`
}

// MonitoringConfig holds metrics settings
type MonitoringConfig struct {
	VictoriaMetricsURL string `yaml:"victoriametrics_url" env:"SIGNUPDESK_VICTORIAMETRICS_URL"`
	MetricsPrefix      string `yaml:"metrics_prefix"`
	JobName            string `yaml:"jobname"`
}

// LoggingConfig defines logging behavior settings
type LoggingConfig struct {
	Level     string `yaml:"level" env:"SIGNUPDESK_LOG_LEVEL"`
	Format    string `yaml:"format" env:"SIGNUPDESK_LOG_FORMAT"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if c.Service.URL == "" {
		return fmt.Errorf("service URL is required")
	}
	u, err := url.Parse(c.Service.URL)
	if err != nil {
		return fmt.Errorf("invalid service URL %q: %w", c.Service.URL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("service URL %q must include scheme and host", c.Service.URL)
	}
	if c.Service.Timeout <= 0 {
		return fmt.Errorf("service timeout must be positive")
	}
	if c.UI.MessageTimeout <= 0 {
		return fmt.Errorf("message timeout must be positive")
	}
	if c.UI.LoginHideDelay <= 0 {
		return fmt.Errorf("login hide delay must be positive")
	}
	if c.Server.LogLimit < 0 {
		return fmt.Errorf("log limit must not be negative")
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	if c.Service.Timeout == 0 {
		c.Service.Timeout = defaultServiceTimeout
	}
	if c.UI.Locale == "" {
		c.UI.Locale = defaultLocale
	}
	if c.UI.MessageTimeout == 0 {
		c.UI.MessageTimeout = defaultMessageTimeout
	}
	if c.UI.LoginHideDelay == 0 {
		c.UI.LoginHideDelay = defaultLoginHideDelay
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaultListenAddr
	}
	if c.Server.LogLimit == 0 {
		c.Server.LogLimit = defaultLogLimit
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
}

// LoadConfig reads the YAML config file at path, applies environment
// overrides and defaults, and validates the result. An empty path skips the
// file so the configuration can come from the environment alone.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("decoding %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
