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

// Defaults for the recognised refresh and cache options.
const (
	DefaultPriceTTLSeconds    = 30
	DefaultPERatioTTLSeconds  = 21600 // 6 hours
	DefaultEarningsTTLSeconds = 86400 // 24 hours
	DefaultIntervalMinutes    = 15
	DefaultFetchTimeoutMs     = 10000
)

// Config holds all configuration for Folio
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Cache       CacheConfig     `toml:"cache"`
	Refresh     RefreshConfig   `toml:"refresh"`
	Clients     ClientsConfig   `toml:"clients"`
	Portfolio   PortfolioConfig `toml:"portfolio"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// CacheConfig holds the per-data-kind TTLs, in seconds.
type CacheConfig struct {
	PriceTTLSeconds    int `toml:"price_ttl_seconds"`
	PERatioTTLSeconds  int `toml:"pe_ratio_ttl_seconds"`
	EarningsTTLSeconds int `toml:"earnings_ttl_seconds"`
}

// PriceTTL returns the CMP cache TTL
func (c *CacheConfig) PriceTTL() time.Duration {
	return secondsOr(c.PriceTTLSeconds, DefaultPriceTTLSeconds)
}

// PERatioTTL returns the P/E ratio cache TTL
func (c *CacheConfig) PERatioTTL() time.Duration {
	return secondsOr(c.PERatioTTLSeconds, DefaultPERatioTTLSeconds)
}

// EarningsTTL returns the earnings-date cache TTL
func (c *CacheConfig) EarningsTTL() time.Duration {
	return secondsOr(c.EarningsTTLSeconds, DefaultEarningsTTLSeconds)
}

func secondsOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// RefreshConfig holds scheduler and pacing configuration
type RefreshConfig struct {
	IntervalMinutes int    `toml:"interval_minutes"`
	PriceDelay      string `toml:"price_delay"` // pause between price requests
	RatioDelay      string `toml:"ratio_delay"` // pause between P/E + earnings requests
	RunOnStart      bool   `toml:"run_on_start"`
}

// Interval returns the scheduler period
func (c *RefreshConfig) Interval() time.Duration {
	m := c.IntervalMinutes
	if m <= 0 {
		m = DefaultIntervalMinutes
	}
	return time.Duration(m) * time.Minute
}

// GetPriceDelay parses and returns the price pacing delay
func (c *RefreshConfig) GetPriceDelay() time.Duration {
	return parseDelay(c.PriceDelay, 500*time.Millisecond)
}

// GetRatioDelay parses and returns the P/E + earnings pacing delay
func (c *RefreshConfig) GetRatioDelay() time.Duration {
	return parseDelay(c.RatioDelay, 2*time.Second)
}

func parseDelay(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// ClientsConfig holds market-data client configurations
type ClientsConfig struct {
	Yahoo  YahooConfig  `toml:"yahoo"`
	Google GoogleConfig `toml:"google"`
}

// YahooConfig holds Yahoo Finance chart API configuration
type YahooConfig struct {
	BaseURL   string `toml:"base_url"`
	TimeoutMs int    `toml:"timeout_ms"`
}

// GetTimeout returns the per-request timeout
func (c *YahooConfig) GetTimeout() time.Duration {
	return millisOr(c.TimeoutMs, DefaultFetchTimeoutMs)
}

// GoogleConfig holds Google Finance quote page configuration
type GoogleConfig struct {
	BaseURL   string `toml:"base_url"`
	Exchange  string `toml:"exchange"`
	TimeoutMs int    `toml:"timeout_ms"`
}

// GetTimeout returns the per-request timeout
func (c *GoogleConfig) GetTimeout() time.Duration {
	return millisOr(c.TimeoutMs, DefaultFetchTimeoutMs)
}

func millisOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}

// PortfolioConfig points at the holdings source. Inline holdings are used
// when no workbook path is set.
type PortfolioConfig struct {
	FilePath string          `toml:"file_path"`
	Holdings []HoldingConfig `toml:"holdings"`
}

// HoldingConfig is one inline holding in the config file
type HoldingConfig struct {
	Symbol        string  `toml:"symbol"`
	Name          string  `toml:"name"`
	Exchange      string  `toml:"exchange"`
	Sector        string  `toml:"sector"`
	Quantity      float64 `toml:"quantity"`
	PurchasePrice float64 `toml:"purchase_price"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Cache: CacheConfig{
			PriceTTLSeconds:    DefaultPriceTTLSeconds,
			PERatioTTLSeconds:  DefaultPERatioTTLSeconds,
			EarningsTTLSeconds: DefaultEarningsTTLSeconds,
		},
		Refresh: RefreshConfig{
			IntervalMinutes: DefaultIntervalMinutes,
			PriceDelay:      "500ms",
			RatioDelay:      "2s",
			RunOnStart:      true,
		},
		Clients: ClientsConfig{
			Yahoo: YahooConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				TimeoutMs: DefaultFetchTimeoutMs,
			},
			Google: GoogleConfig{
				BaseURL:   "https://www.google.com/finance",
				Exchange:  "NSE",
				TimeoutMs: DefaultFetchTimeoutMs,
			},
		},
		Portfolio: PortfolioConfig{
			FilePath: "data/portfolio.xlsx",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
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

	for _, name := range []string{"PORT", "FOLIO_PORT"} {
		if p, ok := envInt(name); ok {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v, ok := envInt("CACHE_CMP_TTL"); ok {
		config.Cache.PriceTTLSeconds = v
	}
	if v, ok := envInt("CACHE_PE_RATIO_TTL"); ok {
		config.Cache.PERatioTTLSeconds = v
	}
	if v, ok := envInt("CACHE_EARNINGS_TTL"); ok {
		config.Cache.EarningsTTLSeconds = v
	}
	if v, ok := envInt("SCRAPER_INTERVAL_MINUTES"); ok {
		config.Refresh.IntervalMinutes = v
	}
	if v, ok := envInt("SCRAPER_TIMEOUT_MS"); ok {
		config.Clients.Yahoo.TimeoutMs = v
		config.Clients.Google.TimeoutMs = v
	}

	if path := os.Getenv("PORTFOLIO_FILE_PATH"); path != "" {
		config.Portfolio.FilePath = path
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
