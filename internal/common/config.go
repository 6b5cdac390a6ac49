// Package common provides shared utilities for Folio
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Folio
type Config struct {
	Environment       string        `toml:"environment"`
	ReportingCurrency string        `toml:"reporting_currency"` // currency for aggregate totals ("KRW" or "USD", default "KRW")
	ExtraKosdaqCodes  []string      `toml:"extra_kosdaq_codes"` // 6-digit codes classified as KOSDAQ in addition to the built-in set
	Server            ServerConfig  `toml:"server"`
	Storage           StorageConfig `toml:"storage"`
	Clients           ClientsConfig `toml:"clients"`
	Quotes            QuotesConfig  `toml:"quotes"`
	Rates             RatesConfig   `toml:"rates"`
	Logging           LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the BadgerHold data directory.
type StorageConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Naver        ClientConfig `toml:"naver"`
	Daum         ClientConfig `toml:"daum"`
	Yahoo        ClientConfig `toml:"yahoo"`
	ExchangeRate ClientConfig `toml:"exchange_rate"`
}

// ClientConfig holds one upstream client's connection settings.
type ClientConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ClientConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// QuotesConfig tunes the quote cache and batch resolution.
type QuotesConfig struct {
	CacheTTL        string `toml:"cache_ttl"`        // serve cached quotes this long (default "3m")
	IdleEviction    string `toml:"idle_eviction"`    // drop entries not requested for this long (default "30m")
	BatchWorkers    int    `toml:"batch_workers"`    // bounded fan-out per batch (default 4)
	RefreshCooldown string `toml:"refresh_cooldown"` // per-symbol forced-refresh cooldown (default "60s")
}

// GetCacheTTL parses the cache TTL duration.
func (c *QuotesConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 3 * time.Minute
	}
	return d
}

// GetIdleEviction parses the idle eviction threshold.
func (c *QuotesConfig) GetIdleEviction() time.Duration {
	d, err := time.ParseDuration(c.IdleEviction)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// GetRefreshCooldown parses the forced-refresh cooldown window.
func (c *QuotesConfig) GetRefreshCooldown() time.Duration {
	d, err := time.ParseDuration(c.RefreshCooldown)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// RatesConfig tunes the exchange-rate service.
type RatesConfig struct {
	RefreshInterval string  `toml:"refresh_interval"` // background refresh period (default "1h")
	FallbackUSDKRW  float64 `toml:"fallback_usd_krw"` // last-resort static rate when no provider or cache is usable
}

// GetRefreshInterval parses the refresh interval duration.
func (c *RatesConfig) GetRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:       "development",
		ReportingCurrency: "KRW",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: "data/folio",
		},
		Clients: ClientsConfig{
			Naver: ClientConfig{
				BaseURL:   "https://polling.finance.naver.com/api/realtime/domestic/stock",
				RateLimit: 5,
				Timeout:   "10s",
			},
			Daum: ClientConfig{
				BaseURL:   "https://finance.daum.net/api/quotes",
				RateLimit: 5,
				Timeout:   "10s",
			},
			Yahoo: ClientConfig{
				BaseURL:   "https://query1.finance.yahoo.com/v8/finance/chart",
				RateLimit: 5,
				Timeout:   "10s",
			},
			ExchangeRate: ClientConfig{
				BaseURL:   "https://open.er-api.com/v6/latest",
				RateLimit: 1,
				Timeout:   "10s",
			},
		},
		Quotes: QuotesConfig{
			CacheTTL:        "3m",
			IdleEviction:    "30m",
			BatchWorkers:    4,
			RefreshCooldown: "60s",
		},
		Rates: RatesConfig{
			RefreshInterval: "1h",
			FallbackUSDKRW:  1350,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	validateReportingCurrency(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FOLIO_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("FOLIO_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if rc := os.Getenv("FOLIO_REPORTING_CURRENCY"); rc != "" {
		config.ReportingCurrency = strings.ToUpper(rc)
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// validateReportingCurrency ensures ReportingCurrency is "KRW" or "USD", defaulting to "KRW".
func validateReportingCurrency(config *Config) {
	rc := strings.ToUpper(config.ReportingCurrency)
	if rc != "KRW" && rc != "USD" {
		rc = "KRW"
	}
	config.ReportingCurrency = rc
}
