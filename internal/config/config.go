package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/GriffinCanCode/navigator/internal/logging"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Prefix is the environment variable prefix for all settings.
const Prefix = "NAVIGATOR"

// DefaultUserAgent is sent when no User-Agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (compatible; navigator/1.0; +https://github.com/GriffinCanCode/navigator)"

// Config holds all navigator configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http" toml:"http"`
	Redirect RedirectConfig `yaml:"redirect" toml:"redirect"`
	Refresh  RefreshConfig  `yaml:"refresh" toml:"refresh"`
	Robots   RobotsConfig   `yaml:"robots" toml:"robots"`
	Cookies  CookieConfig   `yaml:"cookies" toml:"cookies"`
	Gzip     GzipConfig     `yaml:"gzip" toml:"gzip"`
	Logging  LogConfig      `yaml:"logging" toml:"logging"`
}

// HTTPConfig holds transport settings.
type HTTPConfig struct {
	UserAgent          string            `split_words:"true" default:"Mozilla/5.0 (compatible; navigator/1.0; +https://github.com/GriffinCanCode/navigator)" yaml:"user_agent" toml:"user_agent"`
	Timeout            Duration          `default:"30s" yaml:"timeout" toml:"timeout"`
	RateLimit          float64           `split_words:"true" default:"0" yaml:"rate_limit" toml:"rate_limit"`
	InsecureSkipVerify bool              `split_words:"true" default:"false" yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`
	Proxy              string            `yaml:"proxy" toml:"proxy"`
	Headers            map[string]string `yaml:"headers" toml:"headers"`
}

// RedirectConfig bounds redirect chains.
type RedirectConfig struct {
	MaxTotal    int `split_words:"true" default:"20" yaml:"max_total" toml:"max_total"`
	MaxDistinct int `split_words:"true" default:"10" yaml:"max_distinct" toml:"max_distinct"`
}

// RefreshConfig controls Refresh header handling.
type RefreshConfig struct {
	Enabled   bool     `default:"true" yaml:"enabled" toml:"enabled"`
	MaxPause  Duration `split_words:"true" default:"30s" yaml:"max_pause" toml:"max_pause"`
	HonorTime bool     `split_words:"true" default:"false" yaml:"honor_time" toml:"honor_time"`
}

// RobotsConfig controls robots.txt enforcement.
type RobotsConfig struct {
	Enabled bool `default:"true" yaml:"enabled" toml:"enabled"`
}

// CookieConfig controls the cookie jar.
type CookieConfig struct {
	Enabled bool `default:"true" yaml:"enabled" toml:"enabled"`
}

// GzipConfig controls transparent gzip decoding.
type GzipConfig struct {
	Enabled bool `default:"true" yaml:"enabled" toml:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `default:"info" yaml:"level" toml:"level"`
	Development bool   `default:"false" yaml:"development" toml:"development"`
}

// Duration is a time.Duration that reads from "30s"-style text in the
// environment, YAML and TOML alike.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Logger converts the logging section into a logging.Config.
func (c LogConfig) Logger() logging.Config {
	cfg := logging.DefaultConfig()
	if c.Development {
		cfg = logging.DevelopmentConfig()
	}
	if c.Level != "" {
		cfg.Level = c.Level
	}
	return cfg
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile reads a YAML or TOML file on top of the defaults. The format is
// chosen by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			UserAgent: DefaultUserAgent,
			Timeout:   Duration(30 * time.Second),
		},
		Redirect: RedirectConfig{
			MaxTotal:    20,
			MaxDistinct: 10,
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			MaxPause: Duration(30 * time.Second),
		},
		Robots:  RobotsConfig{Enabled: true},
		Cookies: CookieConfig{Enabled: true},
		Gzip:    GzipConfig{Enabled: true},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
