// Package config provides configuration management for the positions report.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultRetention is the cache retention window used when cache.retention is unset.
	defaultRetention = 7 * 24 * time.Hour
	// defaultSettleWindow is how long the resolver waits after batching live subscriptions.
	defaultSettleWindow = 1 * time.Second
	// defaultSecondaryTimeout bounds each secondary-provider lookup.
	defaultSecondaryTimeout = 5 * time.Second
	// defaultSecondaryWorkers bounds concurrent secondary-provider lookups.
	defaultSecondaryWorkers = 4
	// defaultSecondaryRate is the secondary-provider request budget per minute.
	defaultSecondaryRate = 60
	// defaultServerPort is the local HTTP port for the report API.
	defaultServerPort = 8082
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Feed        FeedConfig        `yaml:"feed"`
	Secondary   SecondaryConfig   `yaml:"secondary"`
	Cache       CacheConfig       `yaml:"cache"`
	Watchlist   WatchlistConfig   `yaml:"watchlist"`
	Server      ServerConfig      `yaml:"server"`
	Update      UpdateConfig      `yaml:"update"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// FeedConfig defines live market data feed settings.
type FeedConfig struct {
	Endpoint     string `yaml:"endpoint"`
	APIKey       string `yaml:"api_key"`
	AccountID    string `yaml:"account_id"`
	Timeout      string `yaml:"timeout"`
	SettleWindow string `yaml:"settle_window"`
}

// SecondaryConfig defines the fallback public quote provider settings.
type SecondaryConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIToken      string `yaml:"api_token"`
	Timeout       string `yaml:"timeout"`
	RatePerMinute int    `yaml:"rate_per_minute"`
	Workers       int    `yaml:"workers"`
}

// CacheConfig defines the persisted price cache settings.
type CacheConfig struct {
	Path      string `yaml:"path"`
	Retention string `yaml:"retention"` // e.g. "168h"
}

// WatchlistConfig defines the persisted watchlist settings.
type WatchlistConfig struct {
	Path string   `yaml:"path"`
	Seed []string `yaml:"seed"`
}

// ServerConfig defines the local HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// UpdateConfig defines release update check settings.
type UpdateConfig struct {
	Enabled     bool   `yaml:"enabled"`
	GitHubOwner string `yaml:"github_owner"`
	GitHubRepo  string `yaml:"github_repo"`
	Interval    string `yaml:"interval"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// applyDefaults fills in defaults for optional settings.
func (c *Config) applyDefaults() {
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Feed.Timeout == "" {
		c.Feed.Timeout = "10s"
	}
	if c.Feed.SettleWindow == "" {
		c.Feed.SettleWindow = defaultSettleWindow.String()
	}
	if c.Secondary.Timeout == "" {
		c.Secondary.Timeout = defaultSecondaryTimeout.String()
	}
	if c.Secondary.Workers == 0 {
		c.Secondary.Workers = defaultSecondaryWorkers
	}
	if c.Secondary.RatePerMinute == 0 {
		c.Secondary.RatePerMinute = defaultSecondaryRate
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "ttc_price_cache.json"
	}
	if c.Cache.Retention == "" {
		c.Cache.Retention = defaultRetention.String()
	}
	if c.Watchlist.Path == "" {
		c.Watchlist.Path = "ttc_watchlist.json"
	}
	if c.Watchlist.Seed == nil {
		c.Watchlist.Seed = []string{"AAPL", "NVDA"}
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultServerPort
	}
	if c.Update.Interval == "" {
		c.Update.Interval = "24h"
	}
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	switch c.Environment.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of debug, info, warn, error")
	}

	if c.Feed.Endpoint == "" {
		return fmt.Errorf("feed.endpoint is required")
	}
	if _, err := time.ParseDuration(c.Feed.Timeout); err != nil {
		return fmt.Errorf("feed.timeout invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.Feed.SettleWindow); err != nil {
		return fmt.Errorf("feed.settle_window invalid: %w", err)
	}

	if c.Secondary.Endpoint == "" {
		return fmt.Errorf("secondary.endpoint is required")
	}
	if _, err := time.ParseDuration(c.Secondary.Timeout); err != nil {
		return fmt.Errorf("secondary.timeout invalid: %w", err)
	}
	if c.Secondary.Workers < 1 {
		return fmt.Errorf("secondary.workers must be >= 1")
	}
	if c.Secondary.RatePerMinute < 1 {
		return fmt.Errorf("secondary.rate_per_minute must be >= 1")
	}

	retention, err := time.ParseDuration(c.Cache.Retention)
	if err != nil {
		return fmt.Errorf("cache.retention invalid: %w", err)
	}
	if retention <= 0 {
		return fmt.Errorf("cache.retention must be > 0")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535]")
	}

	if c.Update.Enabled {
		if c.Update.GitHubOwner == "" || c.Update.GitHubRepo == "" {
			return fmt.Errorf("update.github_owner and update.github_repo are required when update.enabled")
		}
		if _, err := time.ParseDuration(c.Update.Interval); err != nil {
			return fmt.Errorf("update.interval invalid: %w", err)
		}
	}

	return nil
}

// FeedTimeout returns the configured live feed HTTP timeout.
func (c *Config) FeedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Feed.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// SettleWindow returns how long to wait after batching live quote subscriptions.
func (c *Config) SettleWindow() time.Duration {
	d, err := time.ParseDuration(c.Feed.SettleWindow)
	if err != nil {
		return defaultSettleWindow
	}
	return d
}

// SecondaryTimeout returns the per-call timeout for secondary quote lookups.
func (c *Config) SecondaryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Secondary.Timeout)
	if err != nil {
		return defaultSecondaryTimeout
	}
	return d
}

// CacheRetention returns the cache retention window.
func (c *Config) CacheRetention() time.Duration {
	d, err := time.ParseDuration(c.Cache.Retention)
	if err != nil {
		return defaultRetention
	}
	return d
}

// UpdateInterval returns the interval between background update checks.
func (c *Config) UpdateInterval() time.Duration {
	d, err := time.ParseDuration(c.Update.Interval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}
